// ABOUTME: Application context: one place that owns every long-lived client component.
// ABOUTME: Built once at process start, torn down on Close; there are no package globals.

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/aeolun/socialite/pkg/api"
	"github.com/aeolun/socialite/pkg/client"
	"github.com/aeolun/socialite/pkg/model"
	"github.com/aeolun/socialite/pkg/notify"
	"github.com/aeolun/socialite/pkg/reconcile"
	"github.com/aeolun/socialite/pkg/social"
	"github.com/prometheus/client_golang/prometheus"
)

const appName = "Socialite"

var ErrNotSignedIn = errors.New("not signed in")

// Options override the components New would otherwise build from config.
// Tests use them to inject fakes.
type Options struct {
	State      client.StateInterface
	Dialer     client.Dialer
	HTTPClient *http.Client
	Registerer prometheus.Registerer
	Notifier   notify.Notifier
	Logger     *log.Logger
	// Handlers are called after the app's own handling of each event
	Handlers client.Handlers
}

// App wires the session store, REST client, realtime connection and the
// optimistic stores together
type App struct {
	Config     client.Config
	State      client.StateInterface
	API        *api.Client
	Realtime   *client.Manager
	Typing     *client.TypingIndicator
	Reconciler *reconcile.Reconciler
	Likes      *social.Likes
	Comments   *social.Comments
	Friends    *social.Friends
	Notifier   notify.Notifier
	Metrics    *client.Metrics

	logger    *log.Logger
	ownsState bool
}

// New builds the application context. It does not touch the network.
func New(cfg client.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, logger: opts.Logger}

	state := opts.State
	if state == nil {
		path, err := cfg.GetStateDBPath()
		if err != nil {
			return nil, err
		}
		s, err := client.OpenState(path)
		if err != nil {
			return nil, fmt.Errorf("open state database: %w", err)
		}
		state = s
		a.ownsState = true
	}
	a.State = state

	a.Metrics = client.NewMetrics(opts.Registerer)
	a.Notifier = opts.Notifier
	if a.Notifier == nil {
		a.Notifier = a.defaultNotifier()
	}

	creds := sessionCredentials{app: a}
	if opts.HTTPClient != nil {
		a.API = api.NewWithClient(cfg.API.BaseURL, opts.HTTPClient, creds)
	} else {
		a.API = api.New(cfg.API.BaseURL, creds, cfg.APITimeout())
	}
	a.API.SetLogger(opts.Logger)

	dialer := opts.Dialer
	if dialer == nil {
		wsURL, err := cfg.RealtimeURL()
		if err != nil {
			a.closeState()
			return nil, err
		}
		dialer = client.NewWebSocketDialer(wsURL, creds)
	}
	a.Realtime = client.NewManager(dialer, creds)
	a.Realtime.SetLogger(opts.Logger)
	a.Realtime.SetMetrics(a.Metrics)
	a.Realtime.SetReconnectPolicy(cfg.Realtime.MaxReconnectAttempts, cfg.ReconnectDelay())
	if !cfg.Realtime.AutoReconnect {
		a.Realtime.DisableAutoReconnect()
	}
	a.Realtime.SetHandlers(a.handlers(opts.Handlers))
	a.Typing = client.NewTypingIndicator(a.Realtime, cfg.TypingIdle())

	a.Reconciler = reconcile.New()
	a.Reconciler.SetNotifier(a.Notifier)
	a.Reconciler.SetObserver(a.Metrics)
	a.Reconciler.SetLogger(opts.Logger)

	a.Likes = social.NewLikes(a.Reconciler, a.API)
	a.Comments = social.NewComments(a.Reconciler, a.API, a.CurrentUser)
	a.Friends = social.NewFriends(a.Reconciler, a.API, a.CurrentUser)

	return a, nil
}

func (a *App) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

func (a *App) defaultNotifier() notify.Notifier {
	logNotifier := notify.NewLog(a.logger)
	if !a.Config.Notifications.Desktop {
		return logNotifier
	}

	icon := ""
	if path, err := a.Config.GetStateDBPath(); err == nil {
		if p, err := notify.IconPath(filepath.Dir(path), a.State); err == nil {
			icon = p
		} else {
			a.logf("Notification icon unavailable: %v", err)
		}
	}
	desktop := notify.NewDesktop(appName, icon)
	desktop.SetLogger(a.logger)
	return notify.Fanout{logNotifier, desktop}
}

// handlers surfaces incoming notifications and messages to the user and then
// forwards to the caller's handlers
func (a *App) handlers(next client.Handlers) client.Handlers {
	h := next
	h.OnNotification = func(n model.Notification) {
		a.Notifier.Notify(n.Message)
		if next.OnNotification != nil {
			next.OnNotification(n)
		}
	}
	h.OnMessage = func(msg model.Message) {
		if me := a.CurrentUser(); me == nil || msg.SenderID != me.ID {
			a.Notifier.Notify("New message: " + client.Preview(msg.Text, 80))
		}
		if next.OnMessage != nil {
			next.OnMessage(msg)
		}
	}
	return h
}

// Start resumes a persisted session. The realtime connection is opened only
// for an authenticated session whose token has not expired; an expired one
// is cleared.
func (a *App) Start(ctx context.Context) (model.Session, error) {
	session, err := a.State.LoadSession()
	if err != nil {
		return model.Session{}, err
	}
	if !session.Valid() {
		return model.Session{}, nil
	}
	if _, ok := a.State.Token(); !ok {
		a.logf("Stored session expired, signing out")
		if err := a.State.ClearSession(); err != nil {
			return model.Session{}, err
		}
		return model.Session{}, nil
	}

	a.Realtime.Connect()
	return session, nil
}

// SignIn authenticates against the REST API, persists the session and opens
// the realtime connection
func (a *App) SignIn(ctx context.Context, email, password string) (model.User, error) {
	resp, err := a.API.SignIn(ctx, email, password)
	if err != nil {
		return model.User{}, err
	}
	return resp.User, a.beginSession(resp)
}

// SignUp creates an account and signs in with it
func (a *App) SignUp(ctx context.Context, req api.SignUpRequest) (model.User, error) {
	resp, err := a.API.SignUp(ctx, req)
	if err != nil {
		return model.User{}, err
	}
	return resp.User, a.beginSession(resp)
}

func (a *App) beginSession(resp api.AuthResponse) error {
	if resp.Token == "" {
		return fmt.Errorf("sign-in response carried no token")
	}
	user := resp.User
	if err := a.State.SaveSession(model.Session{Token: resp.Token, User: &user, Authenticated: true}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	// A previous session may have left the manager connected or rejected
	a.Realtime.Disconnect()
	a.Realtime.Connect()
	return nil
}

// Logout ends the session: stops typing, closes the socket and forgets the
// credential
func (a *App) Logout() error {
	a.Typing.StopAll()
	a.Realtime.Disconnect()
	return a.State.ClearSession()
}

// CurrentUser returns the signed-in user's profile snapshot, or nil
func (a *App) CurrentUser() *model.User {
	session, err := a.State.LoadSession()
	if err != nil || !session.Valid() || session.User == nil {
		return nil
	}
	u := *session.User
	return &u
}

// SendMessage delivers a direct message over the socket when it is
// authenticated and falls back to the REST endpoint otherwise
func (a *App) SendMessage(ctx context.Context, recipientID, text string, attachments []model.Attachment) error {
	err := a.Realtime.SendMessage(recipientID, text, attachments)
	if !errors.Is(err, client.ErrNotAuthenticated) {
		return err
	}
	if _, ok := a.State.Token(); !ok {
		return ErrNotSignedIn
	}
	a.logf("Realtime unavailable, sending message over REST")
	_, err = a.API.SendMessage(ctx, recipientID, text, attachments)
	return err
}

// WaitForAuthenticated blocks until the realtime connection is authenticated,
// rejected, or ctx ends
func (a *App) WaitForAuthenticated(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch a.Realtime.Status() {
		case client.StatusAuthenticated:
			return nil
		case client.StatusAuthFailed:
			return client.ErrAuthRejected
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close waits for in-flight mutations, then shuts everything down
func (a *App) Close() error {
	a.Reconciler.Wait()
	a.Typing.StopAll()
	a.Realtime.Close()
	return a.closeState()
}

func (a *App) closeState() error {
	if !a.ownsState {
		return nil
	}
	return a.State.Close()
}

// sessionCredentials hands the stored token to the REST and realtime layers.
// A credential rejected by the REST API also closes the socket.
type sessionCredentials struct {
	app *App
}

func (c sessionCredentials) Token() (string, bool) {
	return c.app.State.Token()
}

func (c sessionCredentials) ClearCredentials() error {
	c.app.logf("Credential rejected by server, signing out")
	if c.app.Realtime != nil {
		c.app.Realtime.Disconnect()
	}
	return c.app.State.ClearCredentials()
}
