package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Login opens a visible browser on the login page, waits for the user to
// authenticate and press ENTER, then saves the cookies for later runs.
// in/out are the interactive terminal streams.
func Login(ctx context.Context, loginURL, cookiesPath string, in io.Reader, out io.Writer) error {
	controlURL, err := launcher.New().Headless(false).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: loginURL})
	if err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	fmt.Fprintf(out, "A browser window has opened at %s\n", loginURL)
	fmt.Fprintln(out, "Log in, then press ENTER here to save the session...")

	scanner := bufio.NewScanner(in)
	scanner.Scan()
	if err := ctx.Err(); err != nil {
		return err
	}

	cookies, err := page.Cookies([]string{})
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies captured; did the login complete?")
	}

	if err := os.MkdirAll(filepath.Dir(cookiesPath), 0o755); err != nil {
		return fmt.Errorf("create session state dir: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.WriteFile(cookiesPath, data, 0o600); err != nil {
		return fmt.Errorf("write cookie jar: %w", err)
	}

	fmt.Fprintf(out, "Session saved to %s (%d cookies)\n", cookiesPath, len(cookies))
	return nil
}
