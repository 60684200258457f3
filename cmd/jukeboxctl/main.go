// Package main provides the jukebox control CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/jukebox/internal/api/connect"
	jukeboxv1 "github.com/osa030/jukebox/internal/api/jukeboxv1"
	"github.com/osa030/jukebox/internal/api/jukeboxv1/jukeboxv1connect"
	"github.com/osa030/jukebox/internal/app/jukebox"
)

var (
	app    = kingpin.New("jukeboxctl", "Jukebox control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "API token (or set JUKEBOX_API_TOKEN env)").Envar("JUKEBOX_API_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show jukebox status")

	// watch command
	watchCmd = app.Command("watch", "Stream status changes").Alias("subscribe")

	// queue commands
	setNameCmd  = app.Command("set-name", "Set the jukebox name")
	setNameName = setNameCmd.Arg("name", "New name").Required().String()

	replaceCmd    = app.Command("replace", "Replace the queue and start playing").Alias("play-tracks")
	replaceNo     = replaceCmd.Flag("no", "Playback number to start from").Default("0").Int32()
	replaceTracks = replaceCmd.Arg("tracks", "Track IDs, Spotify URIs or URLs (none clears the queue)").Strings()

	moveCmd    = app.Command("move", "Reorder the queue")
	moveTracks = moveCmd.Arg("tracks", "Track IDs in the new order").Required().Strings()

	removeCmd   = app.Command("remove", "Remove a track from the queue")
	removeIndex = removeCmd.Arg("index", "Queue index").Required().Int32()

	shuffleCmd = app.Command("shuffle", "Shuffle the queue")
	repeatCmd  = app.Command("repeat", "Toggle repeat")

	// transport commands
	playCmd      = app.Command("play", "Resume playback")
	pauseCmd     = app.Command("pause", "Pause playback")
	toggleCmd    = app.Command("toggle", "Play or pause")
	stopCmd      = app.Command("stop", "Stop playback")
	nextCmd      = app.Command("next", "Play the next track").Alias("skip")
	previousCmd  = app.Command("previous", "Play the previous track").Alias("prev")
	jumpCmd      = app.Command("jump", "Play the track at a playback number")
	jumpNo       = jumpCmd.Arg("no", "Playback number").Required().Int32()
	seekCmd      = app.Command("seek", "Seek within the current track")
	seekPosition = seekCmd.Arg("position", "Position, e.g. 90s or 1m30s").Required().Duration()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Create client
	client := jukeboxv1connect.NewJukeboxServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(*token)),
	)

	ctx := context.Background()

	// Execute command
	switch command {
	case statusCmd.FullCommand():
		status(ctx, client)
	case watchCmd.FullCommand():
		watch(ctx, client)
	case setNameCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventSetName.String(), Name: *setNameName})
	case replaceCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{
			Type:              jukebox.EventReplaceAndPlay.String(),
			TrackIDs:          *replaceTracks,
			CurrentPlaybackNo: *replaceNo,
		})
	case moveCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventMove.String(), TrackIDs: *moveTracks})
	case removeCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventRemove.String(), RemoveIndex: *removeIndex})
	case shuffleCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventShuffle.String()})
	case repeatCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventRepeat.String()})
	case playCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventPlay.String()})
	case pauseCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventPause.String()})
	case toggleCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventPlayOrPause.String()})
	case stopCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventStop.String()})
	case nextCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventNextPlay.String()})
	case previousCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventPreviousPlay.String()})
	case jumpCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventChangePlaybackNo.String(), CurrentPlaybackNo: *jumpNo})
	case seekCmd.FullCommand():
		dispatch(ctx, client, &jukeboxv1.DispatchRequest{Type: jukebox.EventChangeSeek.String(), SeekMs: int32(seekPosition.Milliseconds())})
	}
}

func dispatch(ctx context.Context, client jukeboxv1connect.JukeboxServiceClient, req *jukeboxv1.DispatchRequest) {
	resp, err := client.Dispatch(ctx, connect.NewRequest(req))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if !resp.Msg.Accepted {
		fmt.Printf("Rejected: %s\n", resp.Msg.Message)
		os.Exit(1)
	}
	fmt.Printf("%s accepted\n", req.Type)
}

func status(ctx context.Context, client jukeboxv1connect.JukeboxServiceClient) {
	resp, err := client.GetStatus(ctx, connect.NewRequest(&jukeboxv1.GetStatusRequest{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n=== CURRENT JUKEBOX STATUS ===")
	printStatus(resp.Msg.Status)
}

func watch(ctx context.Context, client jukeboxv1connect.JukeboxServiceClient) {
	stream, err := client.SubscribeStatus(ctx, connect.NewRequest(&jukeboxv1.SubscribeStatusRequest{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Subscribed to status changes. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	// Receive notifications
	for stream.Receive() {
		n := stream.Msg()
		fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)
		switch n.Type {
		case jukeboxv1.NotificationTypeInitialState:
			fmt.Println("=== INITIAL STATE ===")
		case jukeboxv1.NotificationTypeChangeState:
			fmt.Println("=== STATE CHANGED ===")
		default:
			fmt.Printf("=== UNKNOWN EVENT (%v) ===\n", n.Type)
		}
		printStatus(n.Status)
	}

	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printStatus(s *jukeboxv1.Status) {
	if s == nil {
		return
	}
	fmt.Printf("Name: %s\n", s.Name)
	fmt.Printf("State: %s\n", formatState(s.State))
	if s.PlayerState != "" {
		fmt.Printf("Player: %s\n", s.PlayerState)
	}
	if s.DeviceID != "" {
		fmt.Printf("Device: %s\n", s.DeviceID)
	}
	fmt.Printf("Repeat: %v\n", s.Repeat)

	if t := s.CurrentTrack; t != nil {
		fmt.Printf("\nCurrent Track (#%d):\n", s.CurrentPlaybackNo)
		fmt.Printf("  Track ID: %s\n", t.ID)
		fmt.Printf("  Name: %s\n", t.Name)
		fmt.Printf("  Artists: %s\n", strings.Join(t.Artists, ", "))
		fmt.Printf("  Position: %s / %s\n", formatMs(s.SeekMs), formatMs(t.DurationMs))
	}

	if len(s.Tracks) > 0 {
		fmt.Printf("\nQueue (%d tracks):\n", len(s.Tracks))
		for i, t := range s.Tracks {
			marker := " "
			if int32(i) == s.CurrentPlaybackNo {
				marker = ">"
			}
			fmt.Printf("  %s %2d. %s - %s (%s)\n", marker, i, t.Name, strings.Join(t.Artists, ", "), formatMs(t.DurationMs))
		}
	}
	fmt.Println()
}

func formatState(state string) string {
	switch state {
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "loading":
		return "⏳ Loading"
	case "stopped":
		return "⏹  Stopped"
	case "idle":
		return "💤 Idle"
	default:
		return "❓ " + state
	}
}

func formatMs(ms int32) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
