package client

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/najoast/snakepit/core"
	"github.com/najoast/snakepit/game"
	"github.com/najoast/snakepit/service"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dir := core.NewDirectory(core.Options{MailboxSize: 8, CallTimeout: 2 * time.Second})
	svc := service.NewMatchService(dir, service.Defaults{Width: 10, Height: 10, TickPeriod: time.Hour})
	srv := service.NewServer("bufnet", svc, service.ServerOptions{})

	lis := bufconn.Listen(1 << 20)
	if err := srv.ServeListener(lis); err != nil {
		t.Fatalf("Failed to serve: %v", err)
	}

	c, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}

	t.Cleanup(func() {
		c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
		dir.Close(ctx)
	})
	return c
}

func TestClientCalls(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.WaitForHealth(ctx); err != nil {
		t.Fatalf("Service not healthy: %v", err)
	}

	matchID, err := c.CreateMatch(ctx, 8, 6, 0)
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}

	joined, err := c.JoinMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("JoinMatch failed: %v", err)
	}
	if joined.Width != 8 || joined.Height != 6 {
		t.Errorf("Expected 8x6, got %dx%d", joined.Width, joined.Height)
	}

	snap, err := c.SubmitDirection(ctx, matchID, joined.PlayerID, game.North)
	if err != nil {
		t.Fatalf("SubmitDirection failed: %v", err)
	}
	if snap.DirectionName != "north" {
		t.Errorf("Expected north, got %s", snap.DirectionName)
	}

	snap, err = c.GetStatus(ctx, matchID, joined.PlayerID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if snap.Head() != game.Pt(2, 3) {
		t.Errorf("Expected head (2,3), got %v", snap.Head())
	}

	if err := c.StartMatch(ctx, matchID, joined.PlayerID); err != nil {
		t.Fatalf("StartMatch failed: %v", err)
	}

	matches, err := c.ListMatches(ctx)
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(matches) != 1 || matches[0].MatchID != matchID {
		t.Errorf("Unexpected listing: %+v", matches)
	}

	_, err = c.GetStatus(ctx, matchID, "nobody")
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("Expected PermissionDenied, got %v", err)
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		line string
		want input
		ok   bool
	}{
		{"w", input{dir: game.North}, true},
		{"D\n", input{dir: game.East}, true},
		{" s ", input{dir: game.South}, true},
		{"a", input{dir: game.West}, true},
		{"q", input{quit: true}, true},
		{"e", input{quit: true}, true},
		{"north", input{}, false},
		{"", input{}, false},
	}

	for _, tt := range tests {
		got, ok := parseInput(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseInput(%q) = %+v, %v; want %+v, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseFlags(t *testing.T) {
	addr, cfg, err := ParseFlags(flag.NewFlagSet("snakepit-client", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if addr != DefaultAddr || cfg.Width != 10 || cfg.Height != 10 || cfg.TickPeriod != 500*time.Millisecond {
		t.Errorf("Unexpected defaults: %s %+v", addr, cfg)
	}

	addr, cfg, err = ParseFlags(flag.NewFlagSet("snakepit-client", flag.ContinueOnError),
		[]string{"-addr", "pit:9000", "-size", "20", "-tick", "250ms"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if addr != "pit:9000" || cfg.Width != 20 || cfg.Height != 20 || cfg.TickPeriod != 250*time.Millisecond {
		t.Errorf("Unexpected overrides: %s %+v", addr, cfg)
	}

	bad := [][]string{
		{"-size", "2"},
		{"-tick", "0s"},
		{"-tick", "soon"},
	}
	for _, args := range bad {
		fs := flag.NewFlagSet("snakepit-client", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		if _, _, err := ParseFlags(fs, args); err == nil {
			t.Errorf("Expected %v to be rejected", args)
		}
	}
}

func TestPlay(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := PlayConfig{Width: 10, Height: 10, TickPeriod: time.Hour, PollInterval: 5 * time.Millisecond}
	in := strings.NewReader("x\ns\nq\n")
	var out bytes.Buffer

	if err := c.Play(ctx, cfg, in, &out); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Creating match", "Starting match", "Direction: south", "5\t|"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in output:\n%s", want, got)
		}
	}
}

func TestPollStopsAtMatchEnd(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	matchID, err := c.CreateMatch(ctx, 10, 10, 5)
	if err != nil {
		t.Fatalf("Failed to create match: %v", err)
	}
	joined, err := c.JoinMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("Failed to join match: %v", err)
	}
	if err := c.StartMatch(ctx, matchID, joined.PlayerID); err != nil {
		t.Fatalf("Failed to start match: %v", err)
	}

	var out bytes.Buffer
	c.poll(ctx, &screen{out: &out}, matchID, joined.PlayerID, 5*time.Millisecond)
	if ctx.Err() != nil {
		t.Fatal("Timed out before the match ended")
	}

	got := out.String()
	if !strings.Contains(got, "Match over: out_of_bounds") {
		t.Errorf("Expected the match to end out of bounds, got:\n%s", got)
	}
	if strings.Contains(got, "Polling stopped") {
		t.Errorf("Expected the final snapshot instead of an error, got:\n%s", got)
	}
}
