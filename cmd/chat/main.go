// Command chat is a terminal client for the portfolio chat endpoint. It
// drives the same session state machine the web frontend uses, so quota
// denials, verification prompts and mid-stream interruptions behave
// identically here.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/plonguo/portfolio-api/pkg/chatclient"
)

// teeTransport prints deltas as they arrive so the terminal renders the
// answer progressively, the way the web widget does.
type teeTransport struct {
	inner chatclient.Transport
}

func (t teeTransport) Stream(ctx context.Context, req chatclient.SendRequest, onChunk func(string)) error {
	return t.inner.Stream(ctx, req, func(delta string) {
		fmt.Print(delta)
		onChunk(delta)
	})
}

func main() {
	baseURL := flag.String("url", envOr("CHAT_URL", "http://localhost:8080"), "chat API base URL")
	flag.Parse()

	session := chatclient.NewSession(teeTransport{inner: chatclient.NewClient(*baseURL)})
	session.Open()
	defer session.Close()

	fmt.Printf("connected to %s (session %s)\n", *baseURL, session.ID())
	fmt.Println("type a message, or /verify <token>, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/verify "):
			session.Verify(strings.TrimSpace(strings.TrimPrefix(line, "/verify ")))
			fmt.Println("verification token stored")
			continue
		}

		if err := send(session, line); err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}

func send(session *chatclient.Session, text string) error {
	err := session.Send(context.Background(), text)
	fmt.Println()

	switch {
	case errors.Is(err, chatclient.ErrVerificationRequired):
		fmt.Println("verification required, use /verify <token>")
		return nil
	case err != nil:
		if msg := session.Err(); msg != "" {
			fmt.Println(msg)
			session.ClearError()
			return nil
		}
		return err
	}

	if session.NeedsVerification() {
		fmt.Println("verification required before the next message, use /verify <token>")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
