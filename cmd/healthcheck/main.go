// Package main provides a minimal HTTP probe for container images that ship
// without a shell. It exits 0 when the URL answers 2xx and 1 otherwise.
//
// Usage: healthcheck [url]
//
// The URL defaults to SHIFTGATE_HEALTHCHECK_URL, then to the server's
// readiness endpoint on localhost.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/readyz"

func main() {
	if err := probe(target(os.Args[1:]), 5*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
}

func target(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if u := os.Getenv("SHIFTGATE_HEALTHCHECK_URL"); u != "" {
		return u
	}
	return defaultURL
}

func probe(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return nil
}
