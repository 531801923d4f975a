// Package main provides the Last.fm authentication tool.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/vivizzz007/vivi-music-sub008/internal/infra/lastfm"
)

var (
	app      = kingpin.New("vivi-lastfm-auth", "Last.fm authentication tool for vivi")
	apiKey   = app.Flag("api-key", "Last.fm API key").Envar("LASTFM_API_KEY").Required().String()
	secret   = app.Flag("secret", "Last.fm shared secret").Envar("LASTFM_SECRET").Required().String()
	port     = app.Flag("port", "Callback server port").Default("8888").Int()
	username = app.Flag("username", "Authenticate with username and password instead of the browser").String()
	password = app.Flag("password", "Last.fm password (with --username)").Envar("LASTFM_PASSWORD").String()

	ch = make(chan string, 1)
)

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	client, err := lastfm.New(lastfm.Config{APIKey: *apiKey, Secret: *secret})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var session *lastfm.Session
	if *username != "" {
		session, err = client.GetMobileSession(ctx, *username, *password)
	} else {
		session, err = browserSession(ctx, client)
	}
	if err != nil {
		log.Fatalf("Authorization failed: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Printf("User: %s\n", session.Name)
	fmt.Println("Session Key:")
	fmt.Println(session.Key)
	fmt.Println("")
	fmt.Println("Add this to your config.yaml:")
	fmt.Println("")
	fmt.Println("scrobble:")
	fmt.Println("  enabled: true")
	fmt.Printf("  session_key: \"%s\"\n", session.Key)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export LASTFM_SESSION_KEY=\"%s\"\n", session.Key)
}

// browserSession sends the user to the Last.fm grant page and exchanges the
// token delivered to the local callback.
func browserSession(ctx context.Context, client *lastfm.Client) (*lastfm.Session, error) {
	callback := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", completeAuth)
	server := &http.Server{Addr: fmt.Sprintf(":%d", *port), Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize vivi:")
	fmt.Println("")
	fmt.Println(client.AuthURL(callback))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	var token string
	select {
	case token = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}

	return client.GetSession(ctx, token)
}

func completeAuth(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		log.Printf("Callback without token: %s", r.URL.RawQuery)
		return
	}

	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>vivi - Authorization Complete</title></head>
<body>
    <h1>Authorization Complete</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`)

	select {
	case ch <- token:
	default:
	}
}
