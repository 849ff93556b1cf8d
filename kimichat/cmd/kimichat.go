// Command-line chat client for the kimichat relay
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"kimichat/kimichat/config"
	"kimichat/kimichat/middlewares"
	"kimichat/kimichat/services/chatclient"
	"kimichat/kimichat/sources"
	"kimichat/kimichat/sources/sessions"
	"kimichat/kimichat/utils/color"
	"kimichat/kimichat/utils/jsonutils"
	"kimichat/kimichat/utils/logging"

	"go.uber.org/zap"
)

const usage = `kimichat usage:
  kimichat [chat]          # Interactive chat in the most recent session
  kimichat sessions [q]    # List saved sessions, optionally matching q
  kimichat delete <id>     # Delete a session
  kimichat clear           # Delete every session
  kimichat status          # Show relay status
  kimichat export [id]     # Print a session (or all sessions) as JSON`

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()
	color.DisableColorIfNotTTY()

	ctx := context.Background()
	storage, closeStorage := sources.MustOpenStorage(ctx, cfg)
	defer closeStorage()

	store := sessions.NewStore(storage)
	var opts []chatclient.Option
	if cfg.RelayToken != "" {
		opts = append(opts, chatclient.WithToken(cfg.RelayToken))
	}
	client := chatclient.New(cfg.RelayURL, opts...)

	args := os.Args[1:]
	cmd := "chat"
	if len(args) > 0 {
		cmd = args[0]
	}

	var err error
	switch cmd {
	case "chat":
		err = runChat(ctx, chatclient.NewConversation(store, client), os.Stdin, os.Stdout)
	case "sessions":
		err = listSessions(ctx, store, strings.Join(args[1:], " "), os.Stdout)
	case "delete":
		if len(args) < 2 {
			err = errors.New("delete needs a session id")
			break
		}
		err = store.DeleteSession(ctx, args[1])
	case "clear":
		err = store.ClearAllSessions(ctx)
	case "status":
		err = printStatus(ctx, client, os.Stdout)
	case "export":
		id := ""
		if len(args) > 1 {
			id = args[1]
		}
		err = export(ctx, store, id, os.Stdout)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		logging.ErrorLogger.Error("command failed", zap.String("cmd", cmd), zap.Error(err))
		fmt.Fprintln(os.Stderr, color.ColorError(err.Error()))
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, client *chatclient.Client, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := client.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "status: %s\nmodel: %s\nupstream: %s\n", st.Status, st.Model, st.BaseURL)
	if st.Demo {
		fmt.Fprintln(out, color.ColorWarning("relay is in demo mode (no API key configured)"))
	}
	return nil
}

func listSessions(ctx context.Context, store *sessions.Store, query string, out io.Writer) error {
	all, err := store.GetAllSessions(ctx)
	if err != nil {
		return err
	}
	printSessions(out, all, query, "", store.Now())
	return nil
}

// printSessions lists the sessions matching query grouped by age. Numbers are
// positions in the full list, so /switch and /delete accept them unfiltered.
func printSessions(out io.Writer, all []sessions.Session, query, currentID string, now time.Time) {
	matched := sessions.Filter(all, query)
	if len(matched) == 0 {
		if query == "" {
			fmt.Fprintln(out, color.ColorMuted("no saved sessions"))
		} else {
			fmt.Fprintln(out, color.ColorMuted(fmt.Sprintf("no sessions match %q", query)))
		}
		return
	}
	position := make(map[string]int, len(all))
	for i, s := range all {
		position[s.ID] = i + 1
	}
	for _, group := range sessions.GroupByAge(matched, now) {
		fmt.Fprintln(out, color.ColorInfo(group.Label))
		for _, s := range group.Sessions {
			marker := " "
			if s.ID == currentID {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %2d. %s  %s\n", marker, position[s.ID], s.Title,
				color.ColorMuted(fmt.Sprintf("%s, %d messages, %s",
					sessions.RelativeTime(s.UpdatedAt, now), len(s.Messages), s.ID)))
		}
	}
}

func export(ctx context.Context, store *sessions.Store, id string, out io.Writer) error {
	if id == "" {
		all, err := store.GetAllSessions(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, jsonutils.ToJSON(all))
		return nil
	}
	s, err := store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, jsonutils.ToJSON(s))
	return nil
}

func runChat(ctx context.Context, conv *chatclient.Conversation, in io.Reader, out io.Writer) error {
	if err := conv.Open(ctx); err != nil {
		return err
	}
	cur, _ := conv.Current()
	fmt.Fprintf(out, "\n%s %s\n", color.ColorInfo("Session:"), cur.Title)
	fmt.Fprintln(out, color.ColorMuted("Commands: /new, /sessions [query], /switch <n>, /delete <n>, /rename <title>, /clear, /exit"))
	fmt.Fprintln(out)
	replay(out, cur)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, color.ColorPrompt("you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := runCommand(ctx, conv, line, out)
			if err != nil {
				fmt.Fprintln(out, color.ColorError(err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}
		send(ctx, conv, line, out)
	}
}

// send streams one reply; Ctrl-C cancels the generation, not the program.
func send(ctx context.Context, conv *chatclient.Conversation, text string, out io.Writer) {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprint(out, color.ColorPrompt("kimi> "))
	_, err := conv.Send(sendCtx, text, func(delta string) {
		fmt.Fprint(out, color.ColorAssistant(delta))
	})
	fmt.Fprintln(out)
	if err != nil {
		logging.AppLogger.Info("reply discarded", zap.Error(err))
		fmt.Fprintln(out, color.ColorError(describe(err)))
	}
}

func describe(err error) string {
	var apiErr *chatclient.APIError
	var streamErr *chatclient.StreamError
	switch {
	case errors.As(err, &apiErr) && apiErr.IsDemo:
		return "The relay is in demo mode. Configure OPENROUTER_API_KEY on the server to chat."
	case errors.As(err, &apiErr) && apiErr.Code == middlewares.CodeVisitorTokenRequired:
		return "The relay requires a visitor token. Set RELAY_TOKEN to a token from POST /auth/visitor."
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &streamErr):
		return streamErr.Message
	case errors.Is(err, context.Canceled):
		return "Generation cancelled."
	case errors.Is(err, chatclient.ErrStreamIncomplete):
		return "The reply was cut off. Please try again."
	default:
		return "Sorry, I encountered an error. Please try again."
	}
}

func replay(out io.Writer, s sessions.Session) {
	for _, m := range s.Messages {
		if m.Role == sessions.RoleUser {
			fmt.Fprintf(out, "%s%s\n", color.ColorPrompt("you> "), m.Content)
		} else {
			fmt.Fprintf(out, "%s%s\n", color.ColorPrompt("kimi> "), color.ColorAssistant(m.Content))
		}
	}
}

// sessionAt resolves a 1-based index from /sessions, or a raw id.
func sessionAt(ctx context.Context, conv *chatclient.Conversation, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	all, err := conv.Sessions(ctx)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(all) {
		return "", fmt.Errorf("no session #%d", n)
	}
	return all[n-1].ID, nil
}

func runCommand(ctx context.Context, conv *chatclient.Conversation, line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	switch fields[0] {
	case "/exit", "/quit":
		fmt.Fprintln(out, "Goodbye!")
		return true, nil
	case "/new":
		if err := conv.NewSession(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, color.ColorInfo("Started a new chat."))
	case "/sessions":
		all, err := conv.Sessions(ctx)
		if err != nil {
			return false, err
		}
		cur, _ := conv.Current()
		printSessions(out, all, rest, cur.ID, time.Now())
	case "/rename":
		if err := conv.Rename(ctx, rest); err != nil {
			return false, err
		}
		cur, _ := conv.Current()
		fmt.Fprintf(out, "%s %s\n", color.ColorInfo("Renamed to:"), cur.Title)
	case "/switch", "/delete":
		if arg == "" {
			return false, fmt.Errorf("%s needs a session number", fields[0])
		}
		id, err := sessionAt(ctx, conv, arg)
		if err != nil {
			return false, err
		}
		if fields[0] == "/delete" {
			err = conv.Delete(ctx, id)
		} else {
			err = conv.Select(ctx, id)
		}
		if err != nil {
			return false, err
		}
		cur, _ := conv.Current()
		fmt.Fprintf(out, "%s %s\n", color.ColorInfo("Session:"), cur.Title)
		replay(out, cur)
	case "/clear":
		if err := conv.ClearAll(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, color.ColorInfo("All chats deleted."))
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}
