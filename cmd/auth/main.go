// Package main provides the Spotify authentication tool.
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
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/jukebox/internal/app/credential"
	"github.com/osa030/jukebox/internal/infra/config"
	"github.com/osa030/jukebox/internal/infra/spotify"
	"github.com/osa030/jukebox/internal/infra/tokenstore"
)

var (
	app        = kingpin.New("jukebox-auth", "Spotify authentication tool for jukebox")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	port       = app.Flag("port", "Callback server port").Default("8888").Int()
	printOnly  = app.Flag("print", "Print the refresh token instead of storing it").Bool()

	auth  *spotifyauth.Authenticator
	ch    = make(chan *oauth2.Token)
	state = "jukebox-auth-state"
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse flags
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Build redirect URI with custom port
	customRedirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)

	// Create authenticator
	auth = spotify.NewOAuth(spotify.AuthConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  customRedirectURI,
	})

	// Start HTTP server for callback
	http.HandleFunc("/callback", completeAuth)

	serverAddr := fmt.Sprintf(":%d", *port)
	server := &http.Server{Addr: serverAddr}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Print authorization URL
	url := auth.AuthURL(state)
	fmt.Println("Please visit the following URL to authorize jukebox:")
	fmt.Println("")
	fmt.Println(url)
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	// Wait for token
	token := <-ch

	// Shutdown server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")

	if *printOnly {
		fmt.Println("Refresh Token:")
		fmt.Println(token.RefreshToken)
		fmt.Println("")
		fmt.Println("Set as environment variable:")
		fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", token.RefreshToken)
		return
	}

	if err := storeToken(context.Background(), cfg, token); err != nil {
		log.Fatalf("Failed to store token: %v", err)
	}
	fmt.Printf("Refresh token stored in the %s credential store.\n", cfg.Credentials.Backend)
	fmt.Println("A running server picks it up on its next credential poll.")
}

// storeToken writes the refresh token, and the access token that came with it,
// to the configured credential store.
func storeToken(ctx context.Context, cfg *config.Config, token *oauth2.Token) error {
	store, closeStore, err := tokenstore.OpenFromConfig(cfg.Credentials)
	defer closeStore()
	if err != nil {
		return err
	}

	if err := store.Set(ctx, credential.SpotifyRefreshToken, token.RefreshToken); err != nil {
		return err
	}
	return store.Set(ctx, credential.SpotifyAccessToken, token.AccessToken)
}

func completeAuth(w http.ResponseWriter, r *http.Request) {
	token, err := auth.Token(r.Context(), state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		log.Printf("Failed to get token: %v", err)
		return
	}

	if st := r.FormValue("state"); st != state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		log.Printf("State mismatch: %s != %s", st, state)
		return
	}

	fmt.Fprint(w, successPage)

	ch <- token
}

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Jukebox - Authorization Complete</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: #191414;
            color: white;
        }
        .container {
            text-align: center;
            padding: 40px;
            border: 1px solid #1DB954;
            border-radius: 16px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Complete</h1>
        <p>The jukebox can now open a player session. You can close this window.</p>
    </div>
</body>
</html>
`
