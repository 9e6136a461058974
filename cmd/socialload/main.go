package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aeolun/socialite/pkg/api"
	"github.com/aeolun/socialite/pkg/client"
	"github.com/aeolun/socialite/pkg/model"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat."

var loremWords = strings.Fields(loremIpsum)

type options struct {
	apiURL       string
	realtimeURL  string
	accountsFile string
	clients      int
	duration     time.Duration
	minDelay     time.Duration
	maxDelay     time.Duration
	password     string
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "socialload",
		Short: "Realtime load generator",
		Long: `Connects many bot accounts to the realtime server and has them send
direct messages to each other at random intervals. Delivery latency is
measured on the receiving side.

Bots sign in with the accounts listed in --accounts (one "email:password"
per line). Without it, fresh accounts are signed up for the run.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&opts.apiURL, "api", "http://localhost:3000/api", "REST API base URL")
	f.StringVar(&opts.realtimeURL, "realtime", "", "Realtime URL (derived from --api when empty)")
	f.StringVar(&opts.accountsFile, "accounts", "", "File of email:password lines")
	f.IntVar(&opts.clients, "clients", 10, "Number of concurrent bots")
	f.DurationVar(&opts.duration, "duration", time.Minute, "Test duration")
	f.DurationVar(&opts.minDelay, "min-delay", 100*time.Millisecond, "Minimum delay between messages")
	f.DurationVar(&opts.maxDelay, "max-delay", time.Second, "Maximum delay between messages")
	f.StringVar(&opts.password, "password", "loadtest-pw", "Password for signed-up bot accounts")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type account struct {
	email, password string
}

func loadAccounts(path string) ([]account, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var accounts []account
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		email, password, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%s: expected email:password, got %q", path, line)
		}
		accounts = append(accounts, account{email: email, password: password})
	}
	return accounts, scanner.Err()
}

func randomText() string {
	n := 5 + rand.Intn(16)
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[rand.Intn(len(loremWords))]
	}
	return strings.Join(words, " ")
}

// Bot is one signed-in account holding a realtime connection
type Bot struct {
	id      int
	user    model.User
	token   string
	manager *client.Manager
	stats   *Stats
}

// signIn obtains a session for bot id, signing up a new account when no
// credentials were given
func signIn(ctx context.Context, apiClient *api.Client, id int, acct *account, password string) (api.AuthResponse, error) {
	if acct != nil {
		return apiClient.SignIn(ctx, acct.email, acct.password)
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return apiClient.SignUp(ctx, api.SignUpRequest{
		Username: fmt.Sprintf("bot%d_%s", id, suffix),
		Email:    fmt.Sprintf("bot%d.%s@loadtest.invalid", id, suffix),
		Password: password,
	})
}

func newBot(id int, resp api.AuthResponse, wsURL string, stats *Stats) *Bot {
	b := &Bot{id: id, user: resp.User, token: resp.Token, stats: stats}
	creds := client.CredentialFunc(func() (string, bool) { return b.token, b.token != "" })

	b.manager = client.NewManager(client.NewWebSocketDialer(wsURL, creds), creds)
	b.manager.SetHandlers(client.Handlers{
		OnMessage: func(msg model.Message) {
			if msg.RecipientID != b.user.ID {
				return
			}
			if sentAt, ok := parseStamp(msg.Text); ok {
				stats.recordDelivery(time.Since(sentAt))
			}
		},
	})
	return b
}

// awaitAuth waits until the bot's connection is authenticated or fails
func (b *Bot) awaitAuth(ctx context.Context, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case u, ok := <-b.manager.StateChanges():
			if !ok {
				return fmt.Errorf("manager closed")
			}
			switch u.New {
			case client.StatusAuthenticated:
				return nil
			case client.StatusAuthFailed:
				b.stats.recordAuthError()
				return fmt.Errorf("authentication rejected")
			}
		case <-deadline:
			b.stats.recordConnectError()
			return fmt.Errorf("timeout waiting for authentication")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// watchDrops counts connection losses after authentication
func (b *Bot) watchDrops() {
	for u := range b.manager.StateChanges() {
		if u.Old == client.StatusAuthenticated && u.New != client.StatusAuthenticated {
			b.stats.recordDrop()
		}
	}
}

func (b *Bot) run(ctx context.Context, peers []model.User, until time.Time, minDelay, maxDelay time.Duration) {
	for time.Now().Before(until) {
		if len(peers) > 0 {
			to := peers[rand.Intn(len(peers))]
			if err := b.manager.SendMessage(to.ID, stampMessage(randomText(), time.Now()), nil); err != nil {
				b.stats.recordSendFailure()
			} else {
				b.stats.recordSent()
			}
		}

		delay := minDelay
		if maxDelay > minDelay {
			delay += time.Duration(rand.Int63n(int64(maxDelay - minDelay)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func run(ctx context.Context, opts *options) error {
	wsURL, err := client.ResolveRealtimeURL(opts.apiURL, opts.realtimeURL)
	if err != nil {
		return err
	}

	var accounts []account
	if opts.accountsFile != "" {
		if accounts, err = loadAccounts(opts.accountsFile); err != nil {
			return err
		}
		if len(accounts) < opts.clients {
			return fmt.Errorf("%d clients requested but only %d accounts given", opts.clients, len(accounts))
		}
	}

	// Ramp up over 25% of the test duration
	rampUp := opts.duration / 4
	stagger := rampUp / time.Duration(max(opts.clients, 1))
	if stagger < time.Millisecond {
		stagger = time.Millisecond
	}

	log.Printf("Starting load test:")
	log.Printf("  API: %s", opts.apiURL)
	log.Printf("  Realtime: %s", wsURL)
	log.Printf("  Clients: %d", opts.clients)
	log.Printf("  Duration: %v (ramp-up %v)", opts.duration, rampUp)
	log.Printf("  Delay: %v - %v", opts.minDelay, opts.maxDelay)

	stats := &Stats{}
	apiClient := api.New(opts.apiURL, nil, 15*time.Second)

	// Sign everyone in first so every bot knows its peers
	bots := make([]*Bot, 0, opts.clients)
	for i := 0; i < opts.clients; i++ {
		var acct *account
		if accounts != nil {
			acct = &accounts[i]
		}
		resp, err := signIn(ctx, apiClient, i, acct, opts.password)
		if err != nil {
			stats.recordAuthError()
			log.Printf("[Bot %d] sign-in failed: %v", i, err)
			continue
		}
		bots = append(bots, newBot(i, resp, wsURL, stats))
	}
	if len(bots) == 0 {
		return fmt.Errorf("no bot could sign in")
	}

	peers := make([]model.User, len(bots))
	for i, b := range bots {
		peers[i] = b.user
	}

	stopReport := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Printf("Stats: %s", stats.snapshot())
			case <-stopReport:
				return
			}
		}
	}()

	until := time.Now().Add(opts.duration)
	var wg sync.WaitGroup
	for _, b := range bots {
		b.manager.Connect()
		if err := b.awaitAuth(ctx, 10*time.Second); err != nil {
			log.Printf("[Bot %d] %v", b.id, err)
			b.manager.Close()
			continue
		}

		wg.Add(1)
		go func(b *Bot) {
			defer wg.Done()
			defer b.manager.Close()
			go b.watchDrops()

			others := make([]model.User, 0, len(peers)-1)
			for _, p := range peers {
				if p.ID != b.user.ID {
					others = append(others, p)
				}
			}
			b.run(ctx, others, until, opts.minDelay, opts.maxDelay)
		}(b)

		select {
		case <-ctx.Done():
		case <-time.After(stagger):
		}
	}

	wg.Wait()
	close(stopReport)

	final := stats.snapshot()
	log.Printf("")
	log.Printf("=== Final Results ===")
	log.Printf("Bots connected: %d of %d", len(bots), opts.clients)
	log.Printf("Messages sent: %d (%.1f/s)", final.Sent, float64(final.Sent)/opts.duration.Seconds())
	log.Printf("Send failures: %d", final.SendFailures)
	log.Printf("Delivered: %d (%.1f%%)", final.Delivered, final.DeliveryRate())
	log.Printf("Average delivery latency: %v", final.AvgLatency)
	log.Printf("Auth errors: %d, connect errors: %d, drops: %d", final.AuthErrors, final.ConnectErrors, final.Drops)
	return nil
}
