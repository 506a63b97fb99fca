// Package ply serializes point clouds in the ASCII PLY format.
package ply

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/achilleasa/stereoscan/pointcloud"
)

const headerFormat = `ply
format ascii 1.0
element vertex %d
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
`

// Write emits the header followed by one "X Y Z R G B" line per point in
// the order of the slice.
func Write(w io.Writer, points []pointcloud.Point) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, headerFormat, len(points)); err != nil {
		return fmt.Errorf("ply: could not write header: %w", err)
	}

	line := make([]byte, 0, 64)
	for _, p := range points {
		line = line[:0]
		for axis := 0; axis < 3; axis++ {
			line = strconv.AppendFloat(line, float64(p.Position[axis]), 'f', -1, 32)
			line = append(line, ' ')
		}
		for ch := 0; ch < 3; ch++ {
			line = strconv.AppendUint(line, uint64(p.Color[ch]), 10)
			if ch < 2 {
				line = append(line, ' ')
			}
		}
		line = append(line, '\n')

		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("ply: could not write vertex data: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("ply: could not write vertex data: %w", err)
	}
	return nil
}

// WriteFile writes the point cloud to the given path.
func WriteFile(path string, points []pointcloud.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ply: could not create %s: %w", path, err)
	}

	if err = Write(f, points); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
