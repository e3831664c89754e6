// Command mumble-cli is a manual smoke-test driver over the engine
// façade: join a channel, send a text message, or toggle a user's
// local mute, each as a one-shot invocation, or connect and stay
// attached until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	mumble "github.com/gomumble/engine"
)

var (
	flagHost     string
	flagPort     int
	flagUsername string
	flagPassword string
	flagInsecure bool
)

var rootCmd = &cobra.Command{
	Use:   "mumble-cli",
	Short: "Manual connect/join/say/mute driver for the gomumble engine.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "localhost", "server host")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 64738, "server port")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "username", "mumble-cli", "login username")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "server password")
	rootCmd.PersistentFlags().BoolVar(&flagInsecure, "insecure", true, "skip TLS certificate verification")

	rootCmd.AddCommand(connectCmd, joinCmd, sayCmd, muteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliListener prints every notable callback and signals ready once
// ServerSync arrives, mirroring how an embedder would drive the
// façade from application code.
type cliListener struct {
	mumble.NopListener
	ready chan struct{}
}

func newCLIListener() *cliListener {
	return &cliListener{ready: make(chan struct{}, 1)}
}

func (l *cliListener) ServerSync(welcomeText string, session uint32, maxBandwidth int32, permissions int64) {
	fmt.Printf("connected: session=%d welcome=%q\n", session, welcomeText)
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *cliListener) TextMessage(actor uint32, session, channelID, treeID []uint32, message string) {
	fmt.Printf("[text] actor=%d: %s\n", actor, message)
}

func (l *cliListener) UserState(session, actor int32, name string, userID, channelID, mute, deaf, suppress, selfMute, selfDeaf int32, comment string, prioritySpeaker, recording int32) {
	if name != "" {
		fmt.Printf("[user] session=%d name=%s channel=%d\n", session, name, channelID)
	}
}

func (l *cliListener) Disconnected(cause error) {
	if cause != nil {
		fmt.Fprintf(os.Stderr, "disconnected: %v\n", cause)
	} else {
		fmt.Println("disconnected")
	}
}

// dialSession connects and starts the run loop in the background,
// blocking until ServerSync fires or the context deadline expires.
func dialSession(ctx context.Context) (*mumble.Session, *cliListener, error) {
	listener := newCLIListener()
	cfg := mumble.Config{
		Username: flagUsername,
		Password: flagPassword,
	}
	if flagInsecure {
		cfg.TLSConfig = insecureTLSConfig()
	}

	session, err := mumble.New(cfg, listener)
	if err != nil {
		return nil, nil, err
	}

	if err := session.TransportConnect(ctx, flagHost, flagPort); err != nil {
		return nil, nil, err
	}

	go func() {
		_ = session.TransportRun(ctx)
	}()

	select {
	case <-listener.ready:
		return session, listener, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, nil, fmt.Errorf("mumble-cli: timed out waiting for ServerSync")
	}
}

func contextWithInterrupt() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}
