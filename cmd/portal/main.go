// Command portal registers the signed-in student for an event against a
// running backend. Paid events print the checkout options and read the
// gateway callback from stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/config"
	"github.com/sharath018/campus-events-backend/internal/gateway"
	"github.com/sharath018/campus-events-backend/internal/portal"
	"github.com/sharath018/campus-events-backend/internal/registrar"
)

func main() {
	cfg := config.Load()

	baseURL := flag.String("base", cfg.PortalBaseURL, "backend API base URL")
	email := flag.String("email", os.Getenv("PORTAL_EMAIL"), "login email")
	password := flag.String("password", os.Getenv("PORTAL_PASSWORD"), "login password")
	eventID := flag.String("event", "", "event id to register for; omit to list events")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registered, err := run(ctx, cfg, *baseURL, *email, *password, *eventID, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if !registered {
		os.Exit(2)
	}
}

// run reports false when a registration attempt ended without a seat.
func run(ctx context.Context, cfg *config.Config, baseURL, email, password, eventID string, logger *zap.Logger) (bool, error) {
	if email == "" || password == "" {
		return false, fmt.Errorf("-email and -password (or PORTAL_EMAIL/PORTAL_PASSWORD) are required")
	}

	client, err := portal.NewClient(portal.ClientConfig{BaseURL: baseURL, Logger: logger})
	if err != nil {
		return false, err
	}

	login, err := client.Login(ctx, email, password)
	if err != nil {
		return false, fmt.Errorf("login: %w", err)
	}

	session := registrar.StaticSession{
		Token:  login.AccessToken,
		UserID: login.User.ID,
		Name:   login.User.FullName,
		Email:  login.User.Email,
		Phone:  login.User.Phone,
	}
	bridge := gateway.NewBridge(client, &gateway.TerminalCheckout{In: os.Stdin, Out: os.Stdout}, gateway.BridgeConfig{
		VerifyTimeout: cfg.VerifyTimeout,
		Logger:        logger,
	})
	ctrl := registrar.NewController(client, bridge, session, logger)

	if err := ctrl.Refresh(ctx); err != nil {
		return false, err
	}

	if eventID == "" {
		printCatalog(ctrl)
		return true, nil
	}

	ev, ok := ctrl.Event(eventID)
	if !ok {
		return false, fmt.Errorf("event %s is not open for registration", eventID)
	}

	attempt, err := ctrl.Begin(ev)
	if err != nil {
		return false, err
	}
	result, err := ctrl.Confirm(ctx, attempt)
	if err != nil {
		return false, err
	}
	defer ctrl.Close(attempt)

	fmt.Printf("%s: %s\n", result.Outcome, result.Message)
	if result.PaymentID != "" {
		fmt.Println("payment id:", result.PaymentID)
	}
	if result.RefreshNeeded {
		if err := ctrl.Refresh(ctx); err != nil {
			logger.Warn("refresh after registration failed", zap.Error(err))
		}
	}
	return result.Registered(), nil
}

func printCatalog(ctrl *registrar.Controller) {
	events := ctrl.Catalog()
	sort.Slice(events, func(i, j int) bool { return events[i].Date < events[j].Date })

	registered := ctrl.Registered()
	for _, e := range events {
		mark := " "
		if registered.Contains(e.ID) {
			mark = "*"
		}
		fee := "free"
		if !e.IsFree() {
			fee = fmt.Sprintf("₹%d", e.RegistrationFee)
		}
		fmt.Printf("%s %s  %s  %-30s %-8s %d/%d\n", mark, e.ID, e.Date, e.Name, fee, e.CurrentRegistrations, e.Strength)
	}
	fmt.Printf("\n%d registered, %d attended\n", registered.Len(), len(ctrl.Attended()))
}
