// Package spinning provides a friendly spinning clock (or some other spinning symbols)
// to use while a program is building or compiling models.
package spinning

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
	"k8s.io/klog/v2"
)

// Spinning is a running spinner, created with New and stopped with Done.
type Spinning struct {
	wg     sync.WaitGroup
	cancel func()
}

var (
	ThemeAscii = []rune(`|/-\`)
	ThemeMoon  = []rune("\U0001F311\U0001F312\U0001F313\U0001F314\U0001F315\U0001F316\U0001F317\U0001F318")
	ThemeClock = []rune("\U0001F550\U0001F551\U0001F552\U0001F553\U0001F554\U0001F555" +
		"\U0001F556\U0001F557\U0001F558\U0001F559\U0001F55A\U0001F55B")

	// Theme defaults to ThemeClock, but it can be set to anything else before calling New.
	Theme = ThemeClock

	// IsTerminal reports whether the output is an interactive terminal. If false, New only prints the message.
	IsTerminal = term.IsTerminal(int(os.Stdout.Fd()))
)

// SafeInterrupt will capture SigInt (Ctrl+C) and SigTerm and call the provided onInterrupt.
// If the program haven't exited after gracePeriod, it will call Reset to reset the terminal
// and exit.
func SafeInterrupt(onInterrupt func(), gracePeriod time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		fmt.Println()
		klog.Errorf("Got interrupted (signal %q), shutting down... (%s)", s, gracePeriod)
		if onInterrupt != nil {
			go onInterrupt()
		}

		// Wait for gracePeriod before exiting.
		time.Sleep(gracePeriod)
		Reset()
		klog.Fatalf("Graceful shutting down %s period expired, exiting.", gracePeriod)
	}()
}

// Reset terminal: make cursor visible, restore default terminal colors.
func Reset() {
	if !IsTerminal {
		return
	}
	fmt.Print("\033[?25h\033[39;49;0m\n") // Restore cursor and colors.
}

// New prints msg (if not empty) and starts a spinning display after it, that runs on a separate goroutine.
// It stops when Spinning.Done is called or ctx is cancelled.
func New(ctx context.Context, msg string) *Spinning {
	s := &Spinning{}
	if msg != "" {
		fmt.Print(msg)
	}
	if !IsTerminal {
		if msg != "" {
			fmt.Println()
		}
		return s
	}
	theme := Theme
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		fmt.Print("\033[?25l")       // Hide cursor.
		defer fmt.Print("\033[?25h") // Restore cursor.

		fmt.Print("  ")
		for idx := 0; ; idx = (idx + 1) % len(theme) {
			fmt.Printf("\b\b%c", theme[idx])
			select {
			case <-ctx.Done():
				fmt.Print("\b\b  \n")
				return
			case <-ticker.C:
				// continue
			}
		}
	}()
	return s
}

// Done stops the spinning display and waits for it to clean up. It is safe to call it more than once.
func (s *Spinning) Done() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
}
