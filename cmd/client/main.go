// Package main is the interactive command-line client of the Guard Pine API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/atinyakov/GuardPine/internal/client"
)

var (
	version   string
	buildDate string
)

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "guardpine-session.json"
	}
	return filepath.Join(dir, "guardpine", "session.json")
}

// main parses command-line flags, restores the saved session and runs the shell.
func main() {
	var (
		baseURL     string
		sessionPath string
		showVer     bool
	)
	pflag.StringVarP(&baseURL, "url", "u", "", "server base URL (default from the session, else http://localhost:8080)")
	pflag.StringVar(&sessionPath, "session", defaultSessionPath(), "path to the session file")
	pflag.BoolVarP(&showVer, "version", "v", false, "show build version and date")
	pflag.Parse()

	if showVer {
		fmt.Printf("Guard Pine Client\nVersion: %s\nBuild Date: %s\n", firstNonZero(version, "N/A"), firstNonZero(buildDate, "N/A"))
		return
	}

	session, err := client.LoadSession(sessionPath)
	if err != nil {
		log.Fatalf("load session: %v", err)
	}
	baseURL = firstNonZero(baseURL, session.BaseURL, "http://localhost:8080")
	if baseURL != session.BaseURL {
		// A token is only good for the server that issued it.
		session.BaseURL, session.UserID, session.Token = baseURL, "", ""
	}

	api, err := client.NewAPI(baseURL, nil, session.Token)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shell := &client.Shell{
		API:         api,
		Session:     session,
		SessionPath: sessionPath,
		In:          os.Stdin,
		Out:         os.Stdout,
	}
	if session.UserID != "" {
		fmt.Printf("logged in as %s\n", session.UserID)
	}
	if err := shell.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

// firstNonZero returns the first argument that is not the zero value
// (equivalent to cmp.Or, which requires Go 1.22).
func firstNonZero[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
