package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vikget/vikget"
	"github.com/vikget/vikget/client"
	"github.com/vikget/vikget/errs"
)

func main() {
	var (
		flagUsername        string
		flagPassword        string
		flagLocale          string
		flagAllowUnplayable bool
		flagTimeout         time.Duration
		flagRetries         int
		flagUA              string
		flagProxy           string
	)

	flag.StringVar(&flagUsername, "username", "", "Account login (enables subscriber content)")
	flag.StringVar(&flagPassword, "password", "", "Account password")
	flag.StringVar(&flagLocale, "locale", "en", "Preferred locale for titles and descriptions")
	flag.BoolVar(&flagAllowUnplayable, "allow-unplayable", false, "Keep DRM-protected formats in the list")
	flag.DurationVar(&flagTimeout, "http-timeout", 30*time.Second, "HTTP timeout (e.g., 30s, 1m)")
	flag.IntVar(&flagRetries, "retries", 3, "HTTP retries for transient errors")
	flag.StringVar(&flagUA, "ua", "", "Override User-Agent header")
	flag.StringVar(&flagProxy, "proxy", "", "Proxy URL (http/https/socks)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <video_or_channel_url>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	input := strings.TrimSpace(args[0])
	id, err := vikget.ContentID(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		os.Exit(2)
	}

	e := vikget.New().
		WithClientConfig(client.Config{Timeout: flagTimeout, Retries: flagRetries, UserAgent: flagUA, ProxyURL: flagProxy}).
		WithLocale(flagLocale).
		WithAllowUnplayable(flagAllowUnplayable)
	if flagUsername != "" && flagPassword != "" {
		e = e.WithCredentials(flagUsername, flagPassword)
	}

	ctx := context.Background()
	if strings.HasSuffix(id, "c") {
		runChannel(ctx, e, id)
		return
	}
	runVideo(ctx, e, id)
}

func runVideo(ctx context.Context, e *vikget.Extractor, id string) {
	info, err := e.Video(ctx, id)
	if err != nil {
		exitWithError(err)
	}

	fmt.Printf("Title:    %s\n", info.Title)
	if info.Description != "" {
		fmt.Printf("About:    %s\n", info.Description)
	}
	if info.Duration > 0 {
		fmt.Printf("Duration: %ds\n", info.Duration)
	}
	if info.Uploader != "" {
		fmt.Printf("Uploader: %s\n", info.Uploader)
	}

	if info.ExternalURL != "" {
		fmt.Printf("Hosted externally: %s\n", info.ExternalURL)
		return
	}

	if len(info.Formats) == 0 {
		fmt.Fprintln(os.Stderr, "No playable formats found")
		os.Exit(1)
	}
	fmt.Printf("\n%d formats (worst to best):\n", len(info.Formats))
	for _, f := range info.Formats {
		line := fmt.Sprintf("  %-16s ext=%-4s", f.ID, f.Ext)
		if f.Height > 0 {
			line += fmt.Sprintf(" height=%d", f.Height)
		}
		if f.Bitrate > 0 {
			line += fmt.Sprintf(" bitrate=%d", f.Bitrate)
		}
		if f.Filesize > 0 {
			line += fmt.Sprintf(" size=%d", f.Filesize)
		}
		fmt.Println(line)
		fmt.Printf("    %s\n", f.URL)
	}
}

func runChannel(ctx context.Context, e *vikget.Extractor, id string) {
	info, err := e.Channel(ctx, id)
	if err != nil {
		exitWithError(err)
	}

	fmt.Printf("Channel: %s\n", info.Title)
	if info.Description != "" {
		fmt.Printf("About:   %s\n", info.Description)
	}
	fmt.Printf("\n%d videos:\n", len(info.VideoIDs))
	for _, videoID := range info.VideoIDs {
		fmt.Printf("  %s\n", videoID)
	}
}

func exitWithError(err error) {
	switch {
	case errors.Is(err, errs.ErrGeoBlocked):
		fmt.Fprintln(os.Stderr, "This content is not available in your region")
	case errors.Is(err, errs.ErrLoginRequired):
		fmt.Fprintln(os.Stderr, "This content requires a subscriber account (use -username/-password)")
	case errors.Is(err, errs.ErrNotYetAvailable):
		fmt.Fprintln(os.Stderr, "This content is not yet available")
	default:
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
	}
	os.Exit(1)
}
