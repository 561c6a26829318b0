package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/desktop-fm/src/audio"
	"golang.org/x/sync/errgroup"
)

var (
	sockFileName = flag.String("sock", "/tmp/desktop-fm.sock", "unix socket for commands (empty to disable)")
	presetDir    = flag.String("preset-dir", "presets", "directory of preset files")
	vgmFileName  = flag.String("vgm", "", "record register writes to this VGM file")
	midiPort     = flag.String("midi", "", "substring of the MIDI input port name")
	useKeys      = flag.Bool("keys", false, "play notes from the terminal")
	polyphony    = flag.Int("poly", 6, "number of voices")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var chip audio.Chip = audio.NewBoundedRegisterLog(4096)
	var recorder *audio.VGMRecorder
	if *vgmFileName != "" {
		recorder = audio.NewVGMRecorder()
		chip = recorder
	}

	a, err := audio.NewAudio(chip, audio.Config{
		Polyphony: *polyphony,
		PresetDir: *presetDir,
	})
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer a.Close()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Start(ctx)
	})
	g.Go(func() error {
		for data := range audio.ListenToMidiIn(ctx, *midiPort) {
			a.AddMidiEvent(data)
		}
		return nil
	})
	if *useKeys {
		g.Go(func() error {
			return runKeys(ctx, a.AddMidiEvent, cancel)
		})
	}
	if *sockFileName != "" {
		g.Go(func() error {
			return withIPCConnection(ctx, *sockFileName, func(conn net.Conn) error {
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return receiveCommands(ctx, conn, a.CommandCh)
				})
				g.Go(func() error {
					return sendReports(ctx, conn, a)
				})
				return g.Wait()
			})
		})
	}
	err = g.Wait()
	if recorder != nil {
		if err := saveVGM(*vgmFileName, recorder); err != nil {
			log.Printf("failed to save VGM: %v\n", err)
		}
	}
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func saveVGM(path string, recorder *audio.VGMRecorder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := recorder.WriteTo(f); err != nil {
		return err
	}
	log.Printf("saved %s\n", path)
	return f.Sync()
}

func withIPCConnection(ctx context.Context, sockFileName string, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFileName)
	}()
	go func() {
		// unblock Accept on shutdown
		<-ctx.Done()
		listener.Close()
	}()
	log.Printf("start listening...\n")
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			return err
		}
		commandCh <- command
		log.Printf("received: %s\n", string(line))
		line = []byte{}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(line, " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func sendReports(ctx context.Context, conn net.Conn, a *audio.Audio) error {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			if !a.Changes.Has("data") {
				continue
			}
			a.Changes.Delete("data")
			s := "state " + string(a.ToJSON())
			if _, err := conn.Write([]byte(s + "\n")); err != nil {
				return err
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
