// Package main provides the flare command line tool: device inspection and
// quick backend benchmarks.
package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/flare-ml/flare/backend"
	"github.com/flare-ml/flare/backend/cpu"
	"github.com/flare-ml/flare/backend/wgpu"
	"github.com/flare-ml/flare/internal/pixels"
	"github.com/flare-ml/flare/tensor"
)

const version = "v0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:          "flare",
		Short:        "flare - GPU-accelerated tensor math for Go",
		SilenceUsage: true,
	}
	root.AddCommand(versionCmd(), infoCmd(), benchCmd(), ingestCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("flare %s\n", version)
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show available compute devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("CPU: available")
			if !wgpu.IsAvailable() {
				fmt.Println("WebGPU: no adapter")
				return nil
			}
			arena := tensor.NewArena()
			be, err := wgpu.New(arena)
			if err != nil {
				return err
			}
			defer be.Dispose() //nolint:errcheck // teardown on exit

			fmt.Printf("WebGPU: %s\n", be.Name())
			return nil
		},
	}
}

func newBackend(device string, arena *tensor.Arena) (backend.Backend, error) {
	switch device {
	case "cpu":
		return cpu.New(arena), nil
	case "wgpu":
		return wgpu.New(arena)
	default:
		return nil, fmt.Errorf("unknown device %q (cpu, wgpu)", device)
	}
}

func ingestCmd() *cobra.Command {
	var width, height, channels int
	var device string
	cmd := &cobra.Command{
		Use:   "ingest <image>",
		Short: "Decode an image into a tensor and print its shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck // read-only handle

			img, format, err := image.Decode(f)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			if width > 0 && height > 0 {
				img = pixels.Resize(img, width, height, true)
			}

			arena := tensor.NewArena()
			be, err := newBackend(device, arena)
			if err != nil {
				return err
			}
			defer be.Dispose() //nolint:errcheck // teardown on exit

			arr, err := be.FromPixels(img, channels)
			if err != nil {
				return err
			}
			buf, err := be.ReadSync(arr.DataID())
			if err != nil {
				return err
			}
			fmt.Printf("%s %s: shape %v, %d bytes on %s\n",
				format, args[0], arr.Shape(), len(buf.Bytes()), be.Name())
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "resize to this width before ingestion")
	cmd.Flags().IntVar(&height, "height", 0, "resize to this height before ingestion")
	cmd.Flags().IntVar(&channels, "channels", 3, "channels to extract (1, 3 or 4)")
	cmd.Flags().StringVar(&device, "device", "cpu", "device to ingest on (cpu, wgpu)")
	return cmd
}

func benchCmd() *cobra.Command {
	var size int
	var device, op string
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a quick device benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			arena := tensor.NewArena()
			be, err := newBackend(device, arena)
			if err != nil {
				return err
			}
			defer be.Dispose() //nolint:errcheck // teardown on exit

			rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano()))) //nolint:gosec // benchmark inputs
			mk := func() (*tensor.NDArray, error) {
				arr, err := arena.Make(tensor.Shape{size, size}, tensor.Float32)
				if err != nil {
					return nil, err
				}
				if err := be.Register(arr.DataID(), arr.Shape(), arr.DType()); err != nil {
					return nil, err
				}
				values := make([]float32, size*size)
				for i := range values {
					values[i] = rng.Float32()
				}
				return arr, be.Write(arr.DataID(), tensor.FromFloat32(values))
			}

			a, err := mk()
			if err != nil {
				return err
			}
			b, err := mk()
			if err != nil {
				return err
			}

			var run func() error
			var flops float64
			switch op {
			case "matmul":
				run = func() error {
					c, err := be.MatMul(a, b)
					if err != nil {
						return err
					}
					_, err = be.ReadSync(c.DataID())
					return err
				}
				flops = 2 * float64(size) * float64(size) * float64(size)
			case "sum":
				run = func() error {
					c, err := be.Sum(a, []int{1})
					if err != nil {
						return err
					}
					_, err = be.ReadSync(c.DataID())
					return err
				}
				flops = float64(size) * float64(size)
			default:
				return fmt.Errorf("unknown op %q (matmul, sum)", op)
			}

			elapsed, err := be.Time(run)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s %dx%d: %v (%.2f GFLOP/s)\n",
				be.Name(), op, size, size, elapsed, flops/elapsed.Seconds()/1e9)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 512, "square matrix edge")
	cmd.Flags().StringVar(&device, "device", "cpu", "device to benchmark (cpu, wgpu)")
	cmd.Flags().StringVar(&op, "op", "matmul", "operation to benchmark (matmul, sum)")
	return cmd
}
