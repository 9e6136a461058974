package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aeolun/socialite/pkg/api"
	"github.com/aeolun/socialite/pkg/app"
	"github.com/aeolun/socialite/pkg/client"
	"github.com/aeolun/socialite/pkg/reconcile"
	"github.com/aeolun/socialite/pkg/updater"
)

const realtimeWait = 5 * time.Second

// withApp runs fn against a freshly built app and closes it afterwards
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app.App) error) error {
	a, err := flags.openApp(nil, client.Handlers{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// requireSession fails fast when there is no usable stored credential
func requireSession(a *app.App) error {
	if _, ok := a.State.Token(); !ok {
		return errors.New("not signed in, run 'socialctl signin' first")
	}
	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func createSignInCmd(flags *globalFlags) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := readPassword("Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				user, err := a.SignIn(ctx, email, password)
				if err != nil {
					return err
				}
				color.Green("Signed in as %s", user.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func createSignUpCmd(flags *globalFlags) *cobra.Command {
	var req api.SignUpRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				p, err := readPassword("Choose a password: ")
				if err != nil {
					return err
				}
				req.Password = p
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				user, err := a.SignUp(ctx, req)
				if err != nil {
					return err
				}
				color.Green("Welcome, %s", user.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func createSignOutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := a.Logout(); err != nil {
					return err
				}
				color.Green("Signed out")
				return nil
			})
		},
	}
}

func createWhoAmICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				user, err := a.API.Me(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%s (%s)\n", user.Username, user.ID)
				if user.FullName != "" {
					fmt.Printf("  name:  %s\n", user.FullName)
				}
				if user.Email != "" {
					fmt.Printf("  email: %s\n", user.Email)
				}
				return nil
			})
		},
	}
}

// settle waits for an optimistic operation and reports its outcome
func settle(ctx context.Context, op *reconcile.Op, success string) error {
	if err := op.Wait(ctx); err != nil {
		return err
	}
	color.Green("%s", success)
	return nil
}

func createLikeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "like <postID>",
		Short: "Toggle your like on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID := args[0]
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				posts, err := a.API.Posts(ctx)
				if err != nil {
					return err
				}
				a.Likes.SeedPosts(posts)

				op := a.Likes.Toggle(ctx, postID)
				if err := op.Wait(ctx); err != nil {
					return err
				}
				state := a.Likes.State(postID)
				verb := "Unliked"
				if state.On {
					verb = "Liked"
				}
				color.Green("%s post %s (%d likes)", verb, postID, state.Count)
				return nil
			})
		},
	}
}

func createCommentCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <postID> <text>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, text := args[0], strings.Join(args[1:], " ")
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				op, err := a.Comments.Add(ctx, postID, text)
				if err != nil {
					return err
				}
				return settle(ctx, op, "Comment posted")
			})
		},
	}
}

func createSendCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <recipientID> <text>",
		Short: "Send a direct message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipientID, text := args[0], strings.Join(args[1:], " ")
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if _, err := a.Start(ctx); err != nil {
					return err
				}
				if err := requireSession(a); err != nil {
					return err
				}

				// Prefer the socket, but do not wait long for it
				waitCtx, cancel := context.WithTimeout(ctx, realtimeWait)
				_ = a.WaitForAuthenticated(waitCtx)
				cancel()

				if err := a.SendMessage(ctx, recipientID, text, nil); err != nil {
					return err
				}
				color.Green("Message sent")
				return nil
			})
		},
	}
}

func createFriendCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friend",
		Short: "Manage friends and friend requests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List friends and pending requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if err := a.Friends.Load(ctx); err != nil {
					return err
				}
				bold := color.New(color.Bold)
				bold.Println("Friends")
				for _, f := range a.Friends.List() {
					fmt.Printf("  %s  %s\n", f.Payload.ID, f.Payload.Username)
				}
				bold.Println("Incoming requests")
				for _, r := range a.Friends.Incoming() {
					fmt.Printf("  %s  from %s\n", r.Payload.ID, r.Payload.Sender.Username)
				}
				bold.Println("Sent requests")
				for _, r := range a.Friends.Sent() {
					fmt.Printf("  %s  to %s\n", r.Payload.ID, r.Payload.Receiver.ID)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "request <userID>",
		Short: "Send a friend request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if err := a.Friends.Load(ctx); err != nil {
					return err
				}
				op, err := a.Friends.SendRequest(ctx, args[0])
				if err != nil {
					return err
				}
				return settle(ctx, op, "Friend request sent")
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "accept <requestID>",
		Short: "Accept an incoming friend request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if err := a.Friends.Load(ctx); err != nil {
					return err
				}
				op, err := a.Friends.Accept(ctx, args[0])
				if err != nil {
					return err
				}
				return settle(ctx, op, "Friend request accepted")
			})
		},
	})

	return cmd
}

func createNotificationsCmd(flags *globalFlags) *cobra.Command {
	var readAll bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				notes, err := a.API.Notifications(ctx)
				if err != nil {
					return err
				}
				if len(notes) == 0 {
					fmt.Println("No notifications")
					return nil
				}

				unread := color.New(color.FgCyan, color.Bold)
				marked := 0
				for _, n := range notes {
					line := fmt.Sprintf("%-10s %s  (%s)", n.Type, n.Message, client.FormatRelativeTime(n.CreatedAt))
					if n.Read {
						fmt.Println("  " + line)
						continue
					}
					unread.Println("* " + line)
					if readAll {
						if err := a.API.MarkNotificationRead(ctx, n.ID); err != nil {
							return err
						}
						marked++
					}
				}
				if readAll {
					color.Green("Marked %d notifications read", marked)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&readAll, "read-all", false, "Mark every unread notification read")
	return cmd
}

func createConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or reset the config file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(flags.configPath)
		},
	})

	var backup bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Rewrite the config file with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.ResetConfigToDefault(flags.configPath, backup); err != nil {
				return fmt.Errorf("reset config: %w", err)
			}
			color.Green("Configuration reset to defaults")
			return nil
		},
	}
	reset.Flags().BoolVar(&backup, "backup", false, "Keep a copy of the current file")
	cmd.AddCommand(reset)

	return cmd
}

func createVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version, optionally checking for a newer release",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("socialctl %s\n", version)
			if !check {
				return nil
			}
			rel, err := updater.NewChecker().Latest(cmd.Context())
			if err != nil {
				return err
			}
			if updater.IsNewer(version, rel.TagName) {
				color.Yellow("New version available: %s %s", rel.TagName, rel.HTMLURL)
			} else {
				color.Green("You're on the latest version")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
