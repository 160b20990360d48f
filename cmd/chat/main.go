// Package main is a command line client that streams answers from the gateway's chat endpoint.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
	"github.com/unifiedui/community-gateway/internal/pkg/logging"
	"github.com/unifiedui/community-gateway/internal/services/session"
)

var (
	gatewayURL   string
	accessToken  string
	refreshToken string
	expiresAt    string
	cookiePrefix string
	history      []string
	verbose      bool

	rootCmd = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the community gateway's AI chat from the terminal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			_, err := logging.Setup(logging.Config{Level: level, Format: logging.FormatConsole, Output: os.Stderr})
			return err
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Stream the answer to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "url", envOr("GATEWAY_URL", "http://localhost:8080"), "gateway base URL")
	rootCmd.PersistentFlags().StringVar(&accessToken, "access-token", os.Getenv("GATEWAY_ACCESS_TOKEN"), "value of the access token cookie")
	rootCmd.PersistentFlags().StringVar(&refreshToken, "refresh-token", os.Getenv("GATEWAY_REFRESH_TOKEN"), "value of the refresh token cookie")
	rootCmd.PersistentFlags().StringVar(&expiresAt, "expires-at", os.Getenv("GATEWAY_EXPIRES_AT"), "access token expiry as unix seconds or RFC 3339, read from the token when omitted")
	rootCmd.PersistentFlags().StringVar(&cookiePrefix, "cookie-prefix", session.DefaultCookiePrefix, "session cookie name prefix")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log stream diagnostics to stderr")

	askCmd.Flags().StringArrayVar(&history, "history", nil, `prior turn as "user:text" or "assistant:text", repeatable`)

	rootCmd.AddCommand(askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	turns, err := parseHistory(history)
	if err != nil {
		return err
	}

	expiry, err := resolveExpiry(expiresAt, accessToken)
	if err != nil {
		return err
	}
	if accessToken != "" && expiry.IsZero() {
		log.Warn().Msg("access token expiry unknown, the gateway will treat the session as expired")
	}

	client, err := chatstream.NewClient(&chatstream.ClientConfig{
		BaseURL: gatewayURL,
		Cookies: sessionCookies(cookiePrefix, accessToken, refreshToken, expiry),
	})
	if err != nil {
		return err
	}

	consumer := chatstream.NewConsumer(client, chatstream.WithLogger(log.Logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		consumer.Cleanup()
	}()

	out := cmd.OutOrStdout()
	var failure string
	started := time.Now()

	err = consumer.Stream(ctx, &models.ChatRequest{
		Question: strings.Join(args, " "),
		History:  turns,
	}, chatstream.Callbacks{
		OnToken: func(token string) {
			fmt.Fprint(out, token)
		},
		OnSourceDocuments: func(docs []models.SourceDocument) {
			log.Debug().Int("count", len(docs)).Msg("source documents received")
		},
		OnUsedTools: func(tools []models.UsedTool) {
			for _, t := range tools {
				log.Debug().Str("tool", t.Tool).Msg("tool used")
			}
		},
		OnError: func(message string) {
			failure = message
		},
		OnEnd: func() {
			log.Debug().Dur("elapsed", time.Since(started)).Msg("answer complete")
		},
	})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return context.Canceled
	}
	if failure != "" {
		return fmt.Errorf("%s", failure)
	}
	return nil
}

// sessionCookies returns the cookies the gateway reads a session from.
// The expiry cookie is sent only when expiresAt is known.
func sessionCookies(prefix, access, refresh string, expiresAt time.Time) []*http.Cookie {
	accessName, refreshName, expiresName := session.CookieNames(prefix)
	var cookies []*http.Cookie
	if access != "" {
		cookies = append(cookies, &http.Cookie{Name: accessName, Value: access})
	}
	if refresh != "" {
		cookies = append(cookies, &http.Cookie{Name: refreshName, Value: refresh})
	}
	if len(cookies) > 0 && !expiresAt.IsZero() {
		cookies = append(cookies, &http.Cookie{Name: expiresName, Value: strconv.FormatInt(expiresAt.Unix(), 10)})
	}
	return cookies
}

// resolveExpiry parses raw, falling back to the access token's exp claim.
// It returns the zero time when neither yields an expiry.
func resolveExpiry(raw, access string) (time.Time, error) {
	if raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.Unix(unix, 0).UTC(), nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --expires-at %q: want unix seconds or RFC 3339", raw)
		}
		return t.UTC(), nil
	}
	return tokenExpiry(access), nil
}

// tokenExpiry reads the exp claim of a JWT without verifying it.
func tokenExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp <= 0 {
		return time.Time{}
	}
	return time.Unix(claims.Exp, 0).UTC()
}

func parseHistory(raw []string) ([]models.ChatHistoryEntry, error) {
	entries := make([]models.ChatHistoryEntry, 0, len(raw))
	for _, item := range raw {
		who, text, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("invalid history entry %q", item)
		}
		var role models.ChatRole
		switch strings.ToLower(strings.TrimSpace(who)) {
		case "user":
			role = models.ChatRoleUser
		case "assistant", "ai":
			role = models.ChatRoleAssistant
		default:
			return nil, fmt.Errorf("unknown history role %q", who)
		}
		entries = append(entries, models.ChatHistoryEntry{Role: role, Content: strings.TrimSpace(text)})
	}
	return entries, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
