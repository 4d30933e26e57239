// Command client is a terminal front end for the MindProbe conversation.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/ashureev/mindprobe/internal/protocol"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:          "mindprobe",
		Short:        "Talk to a MindProbe server from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			conn, _, err := websocket.Dial(dialCtx, url, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", url, err)
			}
			defer func() { _ = conn.CloseNow() }()

			return converse(cmd.Context(), conn, in, out)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "WebSocket endpoint")
	cmd.Flags().DurationVar(&timeout, "dial-timeout", 10*time.Second, "connection timeout")
	return cmd
}

// envelope holds any outbound message; only the fields of its type are set.
type envelope struct {
	Type     string          `json:"type"`
	Message  string          `json:"message"`
	Question string          `json:"question"`
	Number   int             `json:"number"`
	Total    int             `json:"total"`
	Bonus    json.RawMessage `json:"bonus"`
	Data     json.RawMessage `json:"data"`
}

// converse drives one conversation until the server closes it.
func converse(ctx context.Context, conn *websocket.Conn, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	ask := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(lines.Text()), nil
	}

	// pending is the inbound type we owe the server; an error message asks for it again.
	pending := protocol.TypeInitial
	reply := func() error {
		prompt := "> "
		if pending == protocol.TypeInitial {
			prompt = "What's on your mind? "
		}
		if pending == protocol.TypeChoiceResponse {
			prompt = "[reveal/skip] "
		}
		text, err := ask(prompt)
		if err != nil {
			return err
		}
		msg := protocol.Inbound{Type: pending, Message: text}
		if pending == protocol.TypeChoiceResponse {
			msg = protocol.Inbound{Type: pending, ChoiceID: parseChoice(text)}
		}
		return wsjson.Write(ctx, conn, msg)
	}

	if err := reply(); err != nil {
		return err
	}
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		text, err := render(env)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)

		switch env.Type {
		case protocol.TypeFollowUp:
			pending = protocol.TypeAnswer
		case protocol.TypeInteractiveChoice:
			pending = protocol.TypeChoiceResponse
		case protocol.TypeError:
		default:
			continue
		}
		if err := reply(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func parseChoice(text string) string {
	switch strings.ToLower(text) {
	case "", "y", "yes", "reveal", "show":
		return domain.ChoiceReveal
	default:
		return domain.ChoiceSkip
	}
}

// render formats one server message for the terminal.
func render(env envelope) (string, error) {
	var b strings.Builder
	switch env.Type {
	case protocol.TypeFollowUp:
		fmt.Fprintf(&b, "[%d/%d] %s", env.Number, env.Total, env.Question)
	case protocol.TypeError:
		fmt.Fprintf(&b, "! %s", env.Message)
	case protocol.TypeComplete, protocol.TypeThinking:
		b.WriteString(env.Message)
	case protocol.TypePersonalityReveal:
		var p protocol.PersonalityBonus
		if err := json.Unmarshal(env.Bonus, &p); err != nil {
			return "", fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fmt.Fprintf(&b, "%s\n%s\n\n  %s\n  %s\n  traits: %s\n  engagement %d%% · honesty %d%%",
			p.Title, p.Subtitle, p.PersonalityType, p.Description,
			strings.Join(p.Traits, ", "), p.Scores.Engagement, p.Scores.Honesty)
	case protocol.TypeMindReading:
		var m domain.MindReading
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return "", fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fmt.Fprintf(&b, "%s\n%s", m.Title, m.Subtitle)
		for _, p := range m.Predictions {
			fmt.Fprintf(&b, "\n  - %s", p)
		}
		fmt.Fprintf(&b, "\n%s", m.Challenge)
	case protocol.TypeSecretUnlock:
		var s protocol.SecretUnlock
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return "", fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fmt.Fprintf(&b, "%s\n%s\n  %s", s.Title, s.Message, s.From)
	case protocol.TypeInteractiveChoice:
		var c protocol.InteractiveChoice
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return "", fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", c.Title, c.Question, c.Subtitle)
		for _, o := range c.Options {
			fmt.Fprintf(&b, "\n  %s) %s %s", o.ID, o.Text, o.Emoji)
		}
	case protocol.TypeUltimateReveal:
		var u protocol.UltimateReveal
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return "", fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fmt.Fprintf(&b, "%s\n%s\n\n%s\n\n%s\n%s\n%s\n\n%s\n%s\n  %s\n\n%s: %s",
			u.Title, u.Intro, u.HonestTake,
			u.PlotTwist.Title, u.PlotTwist.Reveal, u.PlotTwist.Insight,
			u.FinalMessage.Title, u.FinalMessage.Message, u.FinalMessage.Signature,
			u.Shareable.Title, u.Shareable.ShareText)
	case protocol.TypeFinale:
		var f protocol.Finale
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return "", fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fmt.Fprintf(&b, "%s\n  questions answered: %d\n  insights shared: %d\n%s %s: %s\n%s",
			f.Title, f.Stats.QuestionsAnswered, f.Stats.InsightsShared,
			f.Achievement.Title, f.Achievement.Name, f.Achievement.Description, f.EasterEgg)
	case protocol.TypeRespectfulEnding:
		var e protocol.RespectfulEnding
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return "", fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", e.Message, e.FunFact, e.FinalWords)
	default:
		fmt.Fprintf(&b, "(unhandled %q message)", env.Type)
	}
	return b.String(), nil
}
