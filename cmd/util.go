package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// parsePort checks that raw is a decimal port number.
func parsePort(raw string) (string, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
	if err != nil {
		return "", fmt.Errorf("invalid port %q", raw)
	}

	return strconv.FormatUint(port, 10), nil
}

// listenAddr is the wildcard address for port.
func listenAddr(rawPort string) (string, error) {
	port, err := parsePort(rawPort)
	if err != nil {
		return "", err
	}

	return net.JoinHostPort("", port), nil
}

// remoteAddr joins a host and port given on the command line.
func remoteAddr(host, rawPort string) (string, error) {
	port, err := parsePort(rawPort)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(host) == "" {
		return "", fmt.Errorf("empty host")
	}

	return net.JoinHostPort(host, port), nil
}
