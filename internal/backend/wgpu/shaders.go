package wgpu

import (
	"fmt"
	"strings"
)

// WGSL program factories. Operand shapes and operation constants are baked
// into the generated source; the program cache keys on the canonical
// signature, which folds in everything a factory bakes, so identical
// signatures always reuse one pipeline.

// matmulTile is the square workgroup edge for matrix multiplication.
const matmulTile = 16

// binaryShader computes result[idx] = expr over same-length operands a and b.
func binaryShader(expr string) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = %s;
    }
}
`, expr)
}

// unaryShader computes result[idx] = expr over one operand x. params.lo and
// params.hi carry the scalar arguments of parameterized programs.
func unaryShader(expr string) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    lo: f32,
    hi: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = %s;
    }
}
`, expr)
}

// matmulShader computes C = A @ B for row-major A [M,K] and B [K,N].
func matmulShader() string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    m: u32,
    k: u32,
    n: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(%d, %d)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;
    if (row >= params.m || col >= params.n) {
        return;
    }

    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < params.k; i = i + 1u) {
        sum = sum + a[row * params.k + i] * b[i * params.n + col];
    }
    result[row * params.n + col] = sum;
}
`, matmulTile, matmulTile)
}

// reducePassShader folds one window per thread: input rows of width inW
// shrink to rows of width ceil(inW/window). acc starts at the window's first
// element, so min/max need no sentinel.
func reducePassShader(fold string, inW, window int) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

const IN_W: u32 = %du;
const WINDOW: u32 = %du;
const OUT_W: u32 = (IN_W + WINDOW - 1u) / WINDOW;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / OUT_W;
    let start = (idx %% OUT_W) * WINDOW;
    let end = min(start + WINDOW, IN_W);

    var acc = x[row * IN_W + start];
    for (var j = start + 1u; j < end; j = j + 1u) {
        let v = x[row * IN_W + j];
        acc = %s;
    }
    result[idx] = acc;
}
`, inW, window, fold)
}

// argReduceFirstShader is the first pass of an index reduction: alongside the
// folded value it records the within-row position of the winner. Strict
// comparison keeps the first-encountered winner on ties.
func argReduceFirstShader(cmp string, inW, window int) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> vals: array<f32>;
@group(0) @binding(2) var<storage, read_write> idxs: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

const IN_W: u32 = %du;
const WINDOW: u32 = %du;
const OUT_W: u32 = (IN_W + WINDOW - 1u) / WINDOW;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / OUT_W;
    let start = (idx %% OUT_W) * WINDOW;
    let end = min(start + WINDOW, IN_W);

    var best = x[row * IN_W + start];
    var best_idx = start;
    for (var j = start + 1u; j < end; j = j + 1u) {
        let v = x[row * IN_W + j];
        if (v %s best) {
            best = v;
            best_idx = j;
        }
    }
    vals[idx] = best;
    idxs[idx] = f32(best_idx);
}
`, inW, window, cmp)
}

// argReduceCombineShader folds candidate (value, index) pairs from a previous
// arg-reduction pass. Earlier candidates win ties because comparison stays
// strict and windows scan in index order.
func argReduceCombineShader(cmp string, inW, window int) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> in_vals: array<f32>;
@group(0) @binding(1) var<storage, read> in_idxs: array<f32>;
@group(0) @binding(2) var<storage, read_write> vals: array<f32>;
@group(0) @binding(3) var<storage, read_write> idxs: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

const IN_W: u32 = %du;
const WINDOW: u32 = %du;
const OUT_W: u32 = (IN_W + WINDOW - 1u) / WINDOW;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / OUT_W;
    let start = (idx %% OUT_W) * WINDOW;
    let end = min(start + WINDOW, IN_W);

    var best = in_vals[row * IN_W + start];
    var best_idx = in_idxs[row * IN_W + start];
    for (var j = start + 1u; j < end; j = j + 1u) {
        let v = in_vals[row * IN_W + j];
        if (v %s best) {
            best = v;
            best_idx = in_idxs[row * IN_W + j];
        }
    }
    vals[idx] = best;
    idxs[idx] = best_idx;
}
`, inW, window, cmp)
}

// convParamsWGSL is the shared uniform layout of convolution and pooling
// programs. Field order matches the little-endian block built in conv.go.
const convParamsWGSL = `
struct Params {
    size: u32,
    batch: u32,
    in_h: u32,
    in_w: u32,
    in_c: u32,
    out_h: u32,
    out_w: u32,
    out_c: u32,
    f_h: u32,
    f_w: u32,
    stride_h: u32,
    stride_w: u32,
    pad_top: u32,
    pad_left: u32,
}
`

// conv2dShader computes an NHWC convolution with an HWIO filter, one thread
// per output element.
func conv2dShader(hasBias bool) string {
	biasBinding := ""
	biasAdd := ""
	paramsBinding := 3
	if hasBias {
		biasBinding = "@group(0) @binding(2) var<storage, read> bias: array<f32>;\n"
		biasAdd = "    sum = sum + bias[oc];\n"
		paramsBinding = 4
	}
	outBinding := paramsBinding - 1
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> filt: array<f32>;
%s@group(0) @binding(%d) var<storage, read_write> result: array<f32>;
%s
@group(0) @binding(%d) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let oc = idx %% params.out_c;
    var rem = idx / params.out_c;
    let ox = rem %% params.out_w;
    rem = rem / params.out_w;
    let oy = rem %% params.out_h;
    let n = rem / params.out_h;

    var sum: f32 = 0.0;
    for (var fy = 0u; fy < params.f_h; fy = fy + 1u) {
        let iy = i32(oy * params.stride_h + fy) - i32(params.pad_top);
        if (iy < 0 || iy >= i32(params.in_h)) {
            continue;
        }
        for (var fx = 0u; fx < params.f_w; fx = fx + 1u) {
            let ix = i32(ox * params.stride_w + fx) - i32(params.pad_left);
            if (ix < 0 || ix >= i32(params.in_w)) {
                continue;
            }
            let x_base = ((n * params.in_h + u32(iy)) * params.in_w + u32(ix)) * params.in_c;
            let f_base = ((fy * params.f_w + fx) * params.in_c) * params.out_c;
            for (var ic = 0u; ic < params.in_c; ic = ic + 1u) {
                sum = sum + x[x_base + ic] * filt[f_base + ic * params.out_c + oc];
            }
        }
    }
%s    result[idx] = sum;
}
`, biasBinding, outBinding, convParamsWGSL, paramsBinding, biasAdd)
}

// conv2dInputBackwardShader computes the convolution input gradient, one
// thread per input element.
func conv2dInputBackwardShader() string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read> filt: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;
%s
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let ic = idx %% params.in_c;
    var rem = idx / params.in_c;
    let ix = rem %% params.in_w;
    rem = rem / params.in_w;
    let iy = rem %% params.in_h;
    let n = rem / params.in_h;

    var sum: f32 = 0.0;
    for (var fy = 0u; fy < params.f_h; fy = fy + 1u) {
        let oy_num = i32(iy + params.pad_top) - i32(fy);
        if (oy_num < 0 || oy_num %% i32(params.stride_h) != 0) {
            continue;
        }
        let oy = u32(oy_num) / params.stride_h;
        if (oy >= params.out_h) {
            continue;
        }
        for (var fx = 0u; fx < params.f_w; fx = fx + 1u) {
            let ox_num = i32(ix + params.pad_left) - i32(fx);
            if (ox_num < 0 || ox_num %% i32(params.stride_w) != 0) {
                continue;
            }
            let ox = u32(ox_num) / params.stride_w;
            if (ox >= params.out_w) {
                continue;
            }
            let dy_base = ((n * params.out_h + oy) * params.out_w + ox) * params.out_c;
            let f_base = ((fy * params.f_w + fx) * params.in_c + ic) * params.out_c;
            for (var oc = 0u; oc < params.out_c; oc = oc + 1u) {
                sum = sum + dy[dy_base + oc] * filt[f_base + oc];
            }
        }
    }
    result[idx] = sum;
}
`, convParamsWGSL)
}

// conv2dFilterBackwardShader computes the convolution filter gradient, one
// thread per filter element.
func conv2dFilterBackwardShader() string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> dy: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;
%s
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let oc = idx %% params.out_c;
    var rem = idx / params.out_c;
    let ic = rem %% params.in_c;
    rem = rem / params.in_c;
    let fx = rem %% params.f_w;
    let fy = rem / params.f_w;

    var sum: f32 = 0.0;
    for (var n = 0u; n < params.batch; n = n + 1u) {
        for (var oy = 0u; oy < params.out_h; oy = oy + 1u) {
            let iy = i32(oy * params.stride_h + fy) - i32(params.pad_top);
            if (iy < 0 || iy >= i32(params.in_h)) {
                continue;
            }
            for (var ox = 0u; ox < params.out_w; ox = ox + 1u) {
                let ix = i32(ox * params.stride_w + fx) - i32(params.pad_left);
                if (ix < 0 || ix >= i32(params.in_w)) {
                    continue;
                }
                let x_idx = ((n * params.in_h + u32(iy)) * params.in_w + u32(ix)) * params.in_c + ic;
                let dy_idx = ((n * params.out_h + oy) * params.out_w + ox) * params.out_c + oc;
                sum = sum + x[x_idx] * dy[dy_idx];
            }
        }
    }
    result[idx] = sum;
}
`, convParamsWGSL)
}

// conv2dBiasBackwardShader sums the output gradient over every dimension
// except channels, one thread per channel.
func conv2dBiasBackwardShader() string {
	return `
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    total: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let c = global_id.x;
    if (c >= params.size) {
        return;
    }
    var sum: f32 = 0.0;
    for (var i = c; i < params.total; i = i + params.size) {
        sum = sum + dy[i];
    }
    result[c] = sum;
}
`
}

// poolShader computes a max or avg pooling window, one thread per output
// element. Only in-bounds window positions participate.
func poolShader(isMax bool) string {
	body := `
    var sum: f32 = 0.0;
    var count: f32 = 0.0;`
	fold := `
                sum = sum + x[x_base + c];
                count = count + 1.0;`
	emit := `
    if (count > 0.0) {
        result[idx] = sum / count;
    } else {
        result[idx] = 0.0;
    }`
	if isMax {
		body = `
    var best: f32 = -0x1.fffffep+127;`
		fold = `
                best = max(best, x[x_base + c]);`
		emit = `
    result[idx] = best;`
	}
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;
%s
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let c = idx %% params.out_c;
    var rem = idx / params.out_c;
    let ox = rem %% params.out_w;
    rem = rem / params.out_w;
    let oy = rem %% params.out_h;
    let n = rem / params.out_h;
%s
    for (var fy = 0u; fy < params.f_h; fy = fy + 1u) {
        let iy = i32(oy * params.stride_h + fy) - i32(params.pad_top);
        if (iy < 0 || iy >= i32(params.in_h)) {
            continue;
        }
        for (var fx = 0u; fx < params.f_w; fx = fx + 1u) {
            let ix = i32(ox * params.stride_w + fx) - i32(params.pad_left);
            if (ix < 0 || ix >= i32(params.in_w)) {
                continue;
            }
            {
                let x_base = ((n * params.in_h + u32(iy)) * params.in_w + u32(ix)) * params.in_c;
%s
            }
        }
    }
%s
}
`, convParamsWGSL, body, fold, emit)
}

// maxPoolBackwardShader routes each output gradient to the first position in
// its window that held the maximum, one thread per input element. Each
// covering window is re-scanned so no two threads write the same slot.
func maxPoolBackwardShader() string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read> x: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;
%s
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let c = idx %% params.in_c;
    var rem = idx / params.in_c;
    let ix = rem %% params.in_w;
    rem = rem / params.in_w;
    let iy = rem %% params.in_h;
    let n = rem / params.in_h;

    var sum: f32 = 0.0;
    for (var fy = 0u; fy < params.f_h; fy = fy + 1u) {
        let oy_num = i32(iy + params.pad_top) - i32(fy);
        if (oy_num < 0 || oy_num %% i32(params.stride_h) != 0) {
            continue;
        }
        let oy = u32(oy_num) / params.stride_h;
        if (oy >= params.out_h) {
            continue;
        }
        for (var fx = 0u; fx < params.f_w; fx = fx + 1u) {
            let ox_num = i32(ix + params.pad_left) - i32(fx);
            if (ox_num < 0 || ox_num %% i32(params.stride_w) != 0) {
                continue;
            }
            let ox = u32(ox_num) / params.stride_w;
            if (ox >= params.out_w) {
                continue;
            }

            var best: f32 = -0x1.fffffep+127;
            var best_pos: i32 = -1;
            for (var ky = 0u; ky < params.f_h; ky = ky + 1u) {
                let wy = i32(oy * params.stride_h + ky) - i32(params.pad_top);
                if (wy < 0 || wy >= i32(params.in_h)) {
                    continue;
                }
                for (var kx = 0u; kx < params.f_w; kx = kx + 1u) {
                    let wx = i32(ox * params.stride_w + kx) - i32(params.pad_left);
                    if (wx < 0 || wx >= i32(params.in_w)) {
                        continue;
                    }
                    let pos = i32(((n * params.in_h + u32(wy)) * params.in_w + u32(wx)) * params.in_c + c);
                    if (x[pos] > best) {
                        best = x[pos];
                        best_pos = pos;
                    }
                }
            }
            if (best_pos == i32(idx)) {
                sum = sum + dy[((n * params.out_h + oy) * params.out_w + ox) * params.out_c + c];
            }
        }
    }
    result[idx] = sum;
}
`, convParamsWGSL)
}

// avgPoolBackwardShader spreads each output gradient evenly over its window's
// in-bounds positions, one thread per input element.
func avgPoolBackwardShader() string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;
%s
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let c = idx %% params.in_c;
    var rem = idx / params.in_c;
    let ix = rem %% params.in_w;
    rem = rem / params.in_w;
    let iy = rem %% params.in_h;
    let n = rem / params.in_h;

    var sum: f32 = 0.0;
    for (var fy = 0u; fy < params.f_h; fy = fy + 1u) {
        let oy_num = i32(iy + params.pad_top) - i32(fy);
        if (oy_num < 0 || oy_num %% i32(params.stride_h) != 0) {
            continue;
        }
        let oy = u32(oy_num) / params.stride_h;
        if (oy >= params.out_h) {
            continue;
        }
        for (var fx = 0u; fx < params.f_w; fx = fx + 1u) {
            let ox_num = i32(ix + params.pad_left) - i32(fx);
            if (ox_num < 0 || ox_num %% i32(params.stride_w) != 0) {
                continue;
            }
            let ox = u32(ox_num) / params.stride_w;
            if (ox >= params.out_w) {
                continue;
            }

            var count: f32 = 0.0;
            for (var ky = 0u; ky < params.f_h; ky = ky + 1u) {
                let wy = i32(oy * params.stride_h + ky) - i32(params.pad_top);
                if (wy < 0 || wy >= i32(params.in_h)) {
                    continue;
                }
                for (var kx = 0u; kx < params.f_w; kx = kx + 1u) {
                    let wx = i32(ox * params.stride_w + kx) - i32(params.pad_left);
                    if (wx >= 0 && wx < i32(params.in_w)) {
                        count = count + 1.0;
                    }
                }
            }
            if (count > 0.0) {
                sum = sum + dy[((n * params.out_h + oy) * params.out_w + ox) * params.out_c + c] / count;
            }
        }
    }
    result[idx] = sum;
}
`, convParamsWGSL)
}

// batchNormShader normalizes over the trailing channel dimension. Scale and
// offset bindings exist only in the variants that use them.
func batchNormShader(hasScale, hasOffset bool) string {
	var sb strings.Builder
	sb.WriteString(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> mean: array<f32>;
@group(0) @binding(2) var<storage, read> variance: array<f32>;
`)
	binding := 3
	if hasScale {
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read> scale: array<f32>;\n", binding)
		binding++
	}
	if hasOffset {
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read> offset: array<f32>;\n", binding)
		binding++
	}
	fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read_write> result: array<f32>;\n", binding)

	expr := "(x[idx] - mean[c]) * inverseSqrt(variance[c] + params.eps)"
	if hasScale {
		expr += " * scale[c]"
	}
	if hasOffset {
		expr += " + offset[c]"
	}
	fmt.Fprintf(&sb, `
struct Params {
    size: u32,
    channels: u32,
    eps: f32,
}
@group(0) @binding(%d) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let c = idx %% params.channels;
    result[idx] = %s;
}
`, binding+1, expr)
	return sb.String()
}

// remapShader copies result[idx] = x[src] where body derives src from idx by
// baked stride arithmetic. body must assign the f32 expression to `out`.
func remapShader(body string) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
%s
    result[idx] = out;
}
`, body)
}

// concatShader joins two [outer, block] views along the concat axis.
func concatShader(aBlock, bBlock int) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

const A_BLOCK: u32 = %du;
const B_BLOCK: u32 = %du;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let o = idx / (A_BLOCK + B_BLOCK);
    let r = idx %% (A_BLOCK + B_BLOCK);
    if (r < A_BLOCK) {
        result[idx] = a[o * A_BLOCK + r];
    } else {
        result[idx] = b[o * B_BLOCK + (r - A_BLOCK)];
    }
}
`, aBlock, bBlock)
}

// gatherShader selects slices of x along one axis using an index vector.
// Index values were validated host-side before dispatch.
func gatherShader(body string) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> indices: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
%s
    result[idx] = out;
}
`, body)
}

// oneHotShader expands an index vector into rows of width depth.
func oneHotShader(depth int) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> indices: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    on_value: f32,
    off_value: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

const DEPTH: u32 = %du;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / DEPTH;
    let col = idx %% DEPTH;
    if (i32(col) == i32(indices[row])) {
        result[idx] = params.on_value;
    } else {
        result[idx] = params.off_value;
    }
}
`, depth)
}

// multinomialShader draws one outcome index per thread by inverse-CDF over a
// probability row, with a counter-based hash stream seeded per dispatch.
func multinomialShader(numOutcomes, numSamples int) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> probs: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    seed: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

const OUTCOMES: u32 = %du;
const SAMPLES: u32 = %du;

fn hash(v: u32) -> u32 {
    var h = v;
    h = h ^ (h >> 16u);
    h = h * 0x7feb352du;
    h = h ^ (h >> 15u);
    h = h * 0x846ca68bu;
    h = h ^ (h >> 16u);
    return h;
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let row = idx / SAMPLES;

    var total: f32 = 0.0;
    for (var i = 0u; i < OUTCOMES; i = i + 1u) {
        total = total + probs[row * OUTCOMES + i];
    }

    let r = f32(hash(params.seed ^ hash(idx + 1u))) / 4294967295.0 * total;
    var acc: f32 = 0.0;
    var pick = OUTCOMES - 1u;
    for (var i = 0u; i < OUTCOMES; i = i + 1u) {
        acc = acc + probs[row * OUTCOMES + i];
        if (r < acc) {
            pick = i;
            break;
        }
    }
    result[idx] = f32(pick);
}
`, numOutcomes, numSamples)
}

// resizeBilinearShader rescales NHWC data with bilinear interpolation. The
// source scale factors are baked at their float64-derived values.
func resizeBilinearShader(inH, inW, outH, outW, channels int, scaleH, scaleW float64) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

const IN_H: u32 = %du;
const IN_W: u32 = %du;
const OUT_H: u32 = %du;
const OUT_W: u32 = %du;
const CHANNELS: u32 = %du;
const SCALE_H: f32 = %v;
const SCALE_W: f32 = %v;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let c = idx %% CHANNELS;
    var rem = idx / CHANNELS;
    let ox = rem %% OUT_W;
    rem = rem / OUT_W;
    let oy = rem %% OUT_H;
    let n = rem / OUT_H;

    let src_y = f32(oy) * SCALE_H;
    let y0 = u32(src_y);
    let y1 = min(y0 + 1u, IN_H - 1u);
    let fy = src_y - f32(y0);

    let src_x = f32(ox) * SCALE_W;
    let x0 = u32(src_x);
    let x1 = min(x0 + 1u, IN_W - 1u);
    let fx = src_x - f32(x0);

    let base = n * IN_H * IN_W * CHANNELS;
    let tl = x[base + (y0 * IN_W + x0) * CHANNELS + c];
    let tr = x[base + (y0 * IN_W + x1) * CHANNELS + c];
    let bl = x[base + (y1 * IN_W + x0) * CHANNELS + c];
    let br = x[base + (y1 * IN_W + x1) * CHANNELS + c];
    let top = tl + (tr - tl) * fx;
    let bottom = bl + (br - bl) * fx;
    result[idx] = top + (bottom - top) * fy;
}
`, inH, inW, outH, outW, channels, float32(scaleH), float32(scaleW))
}
