// Headless meeting participant: joins (or creates) a meeting through the
// shared store and runs a real peer session with synthetic camera and
// microphone. Useful as an always-on echo participant and for soak-testing
// signaling against a Redis-backed store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"connectmeet/internal/config"
	"connectmeet/internal/domain"
	"connectmeet/internal/media"
	"connectmeet/internal/meeting"
	"connectmeet/internal/room"
	"connectmeet/internal/rtc"
	"connectmeet/internal/session"
	"connectmeet/internal/signal"
	"connectmeet/internal/store"
	"connectmeet/lib/logger/sl"
	"connectmeet/lib/logger/slogpretty"
)

func main() {
	var roomID string
	var name string
	flag.StringVar(&roomID, "room", "", "meeting code to join; empty creates a new meeting")
	flag.StringVar(&name, "name", "connectmeet-bot", "display name")

	_ = godotenv.Load(".env")
	cfg := config.MustLoad()

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	log := slog.New(opts.NewPrettyHandler(os.Stdout))

	var st store.Store
	if cfg.Redis.Address != "" {
		st = store.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		log.Warn("no redis address configured, signaling stays in-process")
		st = store.NewMemoryStore()
	}

	meetings := meeting.NewService(st, log)
	signals := signal.NewAdapter(st, log)

	ctx := context.Background()
	user := domain.NewGuestUser(name)

	if roomID == "" {
		roomID = domain.NewMeetingID()
		if _, err := meetings.Create(ctx, roomID, user.ID, user.Name); err != nil {
			log.Error("failed to create meeting", sl.Err(err))
			os.Exit(1)
		}
		log.Info("created meeting", slog.String("meeting_id", roomID))
	}

	sess := session.NewManager(signals, rtc.NewPionEngine(), media.NewSyntheticDevice(), cfg.WebRTC.STUNServers, log)
	r := room.NewRoom(meetings, sess, log)

	stop := make(chan os.Signal, 1)
	ossignal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	r.OnEnded(func() {
		log.Info("meeting ended remotely")
		stop <- syscall.SIGTERM
	})

	if err := r.Join(ctx, roomID, user.ID, user.Name); err != nil {
		log.Error("failed to join meeting", slog.String("meeting_id", roomID), sl.Err(err))
		os.Exit(1)
	}

	if err := r.StartCall(ctx); err != nil {
		log.Error("failed to start call", sl.Err(err))
		if leaveErr := r.Leave(ctx); leaveErr != nil {
			log.Warn("leave failed", sl.Err(leaveErr))
		}
		os.Exit(1)
	}

	log.Info("in meeting",
		slog.String("meeting_id", roomID),
		slog.String("role", string(sess.Role())),
	)

	<-stop

	log.Info("leaving meeting", slog.String("meeting_id", roomID))
	if err := r.Leave(ctx); err != nil {
		log.Warn("leave failed", sl.Err(err))
	}
}
