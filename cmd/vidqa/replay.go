package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/vidqa"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/urfave/cli/v2"
)

func replayCommand(c *cli.Context) error {
	ctx := context.Background()

	dir := c.Args().First()
	if dir == "" {
		return fmt.Errorf("segment directory is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defaultFormat := cfg.Ingestion.AudioFormat
	if f := c.String("format"); f != "" {
		defaultFormat = f
	}

	files, err := segmentFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no segment files in %s", dir)
	}

	session, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	fmt.Fprintf(errOut, "Session: %s\n", session.ID())
	fmt.Fprintf(errOut, "Segments: %d from %s\n", len(files), dir)

	if err := replaySegments(session, files, defaultFormat, errOut); err != nil {
		return err
	}

	reader := c.App.Reader
	if reader == nil {
		reader = os.Stdin
	}
	writer := c.App.Writer
	if writer == nil {
		writer = os.Stdout
	}
	return answerLoop(ctx, session, reader, writer)
}

// segmentFiles lists the regular files in dir in name order.
func segmentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func formatOf(path, fallback string) string {
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return fallback
}

// replaySegments submits every file in order and waits for all results.
func replaySegments(session *vidqa.Session, files []string, defaultFormat string, out io.Writer) error {
	results := make([]<-chan ingestion.IngestResult, 0, len(files))
	for _, path := range files {
		audio, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		results = append(results, session.Ingest(audio, formatOf(path, defaultFormat)))
	}

	progress := newProgress(out, len(files))
	progress.Start()
	failed := 0
	for i, ch := range results {
		res := <-ch
		if !res.OK() {
			failed++
			fmt.Fprintf(out, "\n%s: %s\n", filepath.Base(files[i]), res.Message)
		}
		progress.Increment(1)
	}
	progress.Finish()

	if failed == len(files) {
		return fmt.Errorf("all %d segments failed", failed)
	}
	return nil
}

// answerLoop reads one question per line. "/reset" starts a new video,
// "/backfill" embeds chunks stored without a vector and "/status" prints the
// session state.
func answerLoop(ctx context.Context, session *vidqa.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/reset":
			if err := session.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Session reset.")
		case "/backfill":
			res, err := session.Backfill(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Backfilled %d of %d chunks (%d failed).\n", res.Embedded, res.Candidates, res.Failed)
		case "/status":
			st, err := session.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "epoch=%d chunks=%d embedded=%d busy=%t pending=%d\n",
				st.Epoch, st.Chunks, st.Embedded, st.Busy, st.Pending)
		default:
			answer := session.Ask(ctx, line)
			fmt.Fprintf(out, "[%s] %s\n", answer.Kind, answer.Text)
		}
	}
	return scanner.Err()
}
