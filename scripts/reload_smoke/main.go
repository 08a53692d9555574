package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/guestbook-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("reload_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:3000", "guestbook base URL")
	user := flag.String("user", "tester", "username to submit")
	text := flag.String("text", "hello from smoke test", "message text to submit")
	watch := flag.Bool("watch", false, "stay connected to /ws/reload and print events")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := submit(ctx, *base, *user, *text); err != nil {
		return err
	}
	if err := checkListing(ctx, *base, *user); err != nil {
		return err
	}
	fmt.Println("submit and read OK")

	if !*watch {
		return nil
	}
	return watchReloads(ctx, *base)
}

func submit(ctx context.Context, base, user, text string) error {
	form := url.Values{"username": {user}, "message": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/message", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build submit: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		return fmt.Errorf("submit: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func checkListing(ctx context.Context, base, user string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/read", nil)
	if err != nil {
		return fmt.Errorf("build read: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("read: unexpected status %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), user) {
		return errors.New("read: submitted entry not in listing")
	}
	return nil
}

func watchReloads(ctx context.Context, base string) error {
	wsURL := strings.Replace(base, "http", "ws", 1) + "/ws/reload"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()

		if outbound.Error != nil {
			fmt.Printf("Error: %s %s\n", outbound.Error.Code, outbound.Error.Msg)
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			return fmt.Errorf("marshal outbound data: %w", err)
		}

		switch outbound.Event {
		case proto.EventHello:
			var evt proto.HelloData
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("Hello: client=%s\n", evt.ClientID)
			}
		case proto.EventReload:
			var evt proto.ReloadData
			if err := json.Unmarshal(raw, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", string(raw))
				return fmt.Errorf("unmarshal reload: %w", err)
			}
			fmt.Printf("Reload: path=%s ts=%d\n", evt.Path, evt.TS)
		}
	}
}
