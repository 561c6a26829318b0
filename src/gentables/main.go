package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jinjor/desktop-fm/src/audio"
	"golang.org/x/sync/errgroup"
)

const numNotes = 128
const maxPitchBendSensitivity = 24

var pitchBends = []int{-8192, -4096, 0, 4096, 8191}

func main() {
	flag.Parse()
	dir := flag.Arg(0)
	if dir == "" {
		panic("dir is not passed")
	}
	log.SetFlags(log.Lshortfile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("error: %v\n", err)
	}

	ctx := context.Background()
	g, _ := errgroup.WithContext(ctx)
	for pbs := 1; pbs <= maxPitchBendSensitivity; pbs++ {
		g.Go(func() error {
			path := filepath.Join(dir, fmt.Sprintf("fnum_pbs%02d.txt", pbs))
			if err := writeTable(path, pbs); err != nil {
				return err
			}
			log.Printf("saved %s\n", path)
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("Successfully generated F-Number tables.")
}

// writeTable writes "note bend block fnum" lines.
func writeTable(path string, pbs int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for note := 0; note < numNotes; note++ {
		for _, bend := range pitchBends {
			block, fnum := audio.BlockAndFNumber(note, bend, pbs)
			if _, err := fmt.Fprintf(w, "%d %d %d %d\n", note, bend, block, fnum); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
