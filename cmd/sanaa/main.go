// Package main provides the entry point for the SANAA360 creator CLI.
// The CLI connects a creator's TikTok account to the SANAA360 backend over
// OAuth, mirrors the session locally, keeps the access token fresh, and
// posts videos toward challenges.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/sanaa360/creator-cli/internal/backend"
	"github.com/sanaa360/creator-cli/internal/browser"
	"github.com/sanaa360/creator-cli/internal/buildinfo"
	"github.com/sanaa360/creator-cli/internal/callback"
	"github.com/sanaa360/creator-cli/internal/config"
	"github.com/sanaa360/creator-cli/internal/content"
	"github.com/sanaa360/creator-cli/internal/logging"
	"github.com/sanaa360/creator-cli/internal/misc"
	"github.com/sanaa360/creator-cli/internal/session"
	"github.com/sanaa360/creator-cli/internal/watcher"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// loginWaitTimeout bounds how long the CLI waits for the browser redirect.
const loginWaitTimeout = 5 * time.Minute

// manualPromptDelay is how long to wait for the redirect before offering a
// manual URL paste on no-browser logins.
const manualPromptDelay = 15 * time.Second

func main() {
	var login bool
	var noBrowser bool
	var callbackPort int
	var status bool
	var logout bool
	var uploadFile string
	var uploadTitle string
	var uploadDesc string
	var configPath string
	var showVersion bool

	flag.BoolVar(&login, "login", false, "Connect your TikTok account")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open the browser automatically, print the URL instead")
	flag.IntVar(&callbackPort, "callback-port", 0, "Override the local OAuth callback port")
	flag.BoolVar(&status, "status", false, "Show the current session status")
	flag.BoolVar(&logout, "logout", false, "Disconnect your TikTok account")
	flag.StringVar(&uploadFile, "upload", "", "Post a video file to TikTok")
	flag.StringVar(&uploadTitle, "title", "", "Title for the posted video")
	flag.StringVar(&uploadDesc, "desc", "", "Description for the posted video")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configuration file path")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("sanaa version %s, commit %s, built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if configPath == "" {
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if resolved, errResolve := config.ResolveAuthDir(cfg.AuthDir); errResolve != nil {
		log.Fatalf("failed to resolve auth directory: %v", errResolve)
	} else {
		cfg.AuthDir = resolved
	}
	if callbackPort > 0 {
		cfg.Callback.Port = callbackPort
	}
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}

	api, err := backend.New(cfg)
	if err != nil {
		log.Fatalf("failed to create backend client: %v", err)
	}
	store := session.New(api, session.NewFileStore(cfg.AuthDir), cfg.RefreshLead())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Re-apply log output when the config file changes while a long command
	// (login wait, upload polling) is running.
	if w, errWatch := watcher.NewWatcher(configPath, func(newCfg *config.Config) {
		if resolved, errResolve := config.ResolveAuthDir(newCfg.AuthDir); errResolve == nil {
			newCfg.AuthDir = resolved
		}
		if errOut := logging.ConfigureLogOutput(newCfg); errOut != nil {
			log.Errorf("failed to apply reloaded log settings: %v", errOut)
		}
	}); errWatch != nil {
		log.Warnf("config watcher unavailable: %v", errWatch)
	} else if errStart := w.Start(ctx); errStart != nil {
		log.Warnf("config watcher failed to start: %v", errStart)
	} else {
		defer func() {
			_ = w.Stop()
		}()
	}

	switch {
	case login:
		if !runLogin(ctx, cfg, api, store, noBrowser) {
			os.Exit(1)
		}
	case logout:
		if !runLogout(ctx, store) {
			os.Exit(1)
		}
	case uploadFile != "":
		if !runUpload(ctx, api, store, uploadFile, uploadTitle, uploadDesc) {
			os.Exit(1)
		}
	case status:
		runStatus(ctx, store)
	default:
		flag.Usage()
	}
}

// runLogin drives the full connect flow: start the local callback server,
// send the creator's browser to the backend login URL, wait for the
// redirect, then hand the code to the callback controller for exchange.
func runLogin(ctx context.Context, cfg *config.Config, api *backend.Client, store *session.Store, noBrowser bool) bool {
	state, err := misc.GenerateRandomState()
	if err != nil {
		log.Errorf("failed to generate state: %v", err)
		return false
	}

	server := callback.NewServer(cfg.Callback.Port)
	if err = server.Start(); err != nil {
		log.Errorf("failed to start callback server: %v", err)
		return false
	}
	defer func() {
		if server.IsRunning() {
			_ = server.Stop(context.Background())
		}
	}()

	loginURL := api.LoginURL(server.RedirectURI(), state)
	manualPaste := noBrowser || !browser.IsAvailable()
	if manualPaste {
		fmt.Println("Open this URL in your browser to connect TikTok:")
		fmt.Println(loginURL)
		fmt.Println("Signing in from another machine? Paste the full redirect URL here when prompted.")
	} else {
		fmt.Println("Opening your browser to connect TikTok...")
		if err = browser.OpenURL(loginURL); err != nil {
			log.Warnf("failed to open browser: %v", err)
			fmt.Println("Open this URL in your browser to connect TikTok:")
			fmt.Println(loginURL)
		}
	}

	var prompt callback.PromptFunc
	if manualPaste {
		reader := bufio.NewReader(os.Stdin)
		prompt = func(message string) (string, error) {
			fmt.Print(message)
			line, errRead := reader.ReadString('\n')
			if errRead != nil && line == "" {
				return "", errRead
			}
			return strings.TrimSpace(line), nil
		}
	}

	result, err := callback.AwaitCallback(server, prompt, manualPromptDelay, loginWaitTimeout)
	if err != nil {
		log.Errorf("no callback received: %v", err)
		return false
	}
	if result.Error != "" {
		msg := result.Error
		if result.ErrorDescription != "" {
			msg = result.ErrorDescription
		}
		fmt.Printf("TikTok authorization failed: %s\n", msg)
		return false
	}

	ctrl := callback.NewController(store, callback.Options{
		Policy: callback.Policy{
			Base:   cfg.Callback.BaseDelay(),
			Growth: cfg.Callback.GrowthFactor,
			Max:    cfg.Callback.MaxDelay(),
		},
		MaxAttempts:   cfg.Callback.MaxAttempts,
		ExpectedState: state,
		StrictState:   cfg.StrictState,
		OnUpdate: func(snap callback.Snapshot) {
			switch snap.State {
			case callback.StateRetryWait:
				fmt.Printf("Connection problem, retrying in %s (attempt %d)...\n",
					snap.NextRetryIn.Round(time.Second), snap.AttemptCount)
			case callback.StateExchanging:
				fmt.Println("Completing sign-in...")
			}
		},
	})
	ctrl.Begin(ctx, result.Code, result.State)

	outcome := ctrl.Wait(ctx)
	if !outcome.Succeeded {
		fmt.Printf("Sign-in failed: %s\n", outcome.Message)
		return false
	}

	current := store.State()
	if current.User != nil {
		fmt.Printf("Connected as @%s\n", current.User.Username)
	} else {
		fmt.Println("Connected.")
	}
	return true
}

// runStatus refreshes the mirror from the backend and prints it.
func runStatus(ctx context.Context, store *session.Store) {
	store.CheckStatus(ctx)
	state := store.State()

	if !state.IsAuthenticated {
		if state.Err != "" {
			fmt.Printf("Not connected: %s\n", state.Err)
		} else {
			fmt.Println("Not connected. Run sanaa -login to connect your TikTok account.")
		}
		return
	}

	fmt.Printf("Connected as @%s (%s)\n", state.User.Username, state.User.DisplayName)
	if state.TokenExpiry != nil {
		fmt.Printf("Token valid until %s\n", state.TokenExpiry.Local().Format(time.RFC1123))
	}
	if len(state.User.Scope) > 0 {
		fmt.Printf("Granted permissions: %v\n", []string(state.User.Scope))
	}
}

// runLogout revokes the backend grant and clears local state. Local state is
// cleared even when the revoke call fails.
func runLogout(ctx context.Context, store *session.Store) bool {
	revoked := store.Logout(ctx)
	if revoked {
		fmt.Println("Disconnected. TikTok access has been revoked.")
		return true
	}
	fmt.Println("Disconnected locally, but revoking TikTok access failed.")
	fmt.Println("You can remove SANAA360 from your TikTok connected apps manually.")
	return false
}

// runUpload posts a video: refresh-if-needed guard, scope gate, init, direct
// PUT, then status polling until the publish settles.
func runUpload(ctx context.Context, api *backend.Client, store *session.Store, path, title, desc string) bool {
	if title == "" {
		title = filepath.Base(path)
	}

	if !store.CheckAndRefreshIfNeeded(ctx) {
		state := store.State()
		if state.Err != "" {
			fmt.Printf("Cannot post: %s\n", state.Err)
		} else {
			fmt.Println("Cannot post: not connected. Run sanaa -login first.")
		}
		return false
	}
	state := store.State()
	if !state.IsAuthenticated || state.User == nil {
		fmt.Println("Cannot post: not connected. Run sanaa -login first.")
		return false
	}
	if !content.CanPost(state.User.Scope) {
		fmt.Println("Your TikTok connection does not include video posting permission.")
		fmt.Println("Run sanaa -login again and approve all requested permissions.")
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Cannot read video file: %v\n", err)
		return false
	}

	poster := content.New(api)
	upload, errInit := poster.InitUpload(ctx, content.PostRequest{
		Title:       title,
		Description: desc,
		FileSize:    info.Size(),
	})
	if errInit != nil {
		fmt.Printf("Failed to start the upload: %s\n", errInit.Message)
		return false
	}

	fmt.Printf("Uploading %s (%d bytes)...\n", filepath.Base(path), info.Size())
	if errUp := poster.UploadFile(ctx, upload.UploadURL, path); errUp != nil {
		fmt.Printf("Upload failed: %s\n", errUp.Message)
		return false
	}

	fmt.Println("Upload complete, waiting for TikTok to publish...")
	finalStatus, errWait := poster.WaitForPublish(ctx, state.User.ID, upload.PublishID)
	if errWait != nil {
		fmt.Printf("Could not confirm the publish result: %s\n", errWait.Message)
		return false
	}
	if finalStatus != content.StatusPublished {
		fmt.Println("TikTok reported the publish as failed.")
		return false
	}
	fmt.Println("Published.")
	return true
}
