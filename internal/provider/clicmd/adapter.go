package clicmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/nulzo/llm-gateway/internal/auth"
	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/pkg/api"
)

func init() {
	provider.Register("clicmd", New)
}

// Adapter drives a vendor CLI as the model transport: the conversation is
// rendered to a prompt on stdin and the CLI's stream-json output lines are
// translated into canonical events. The CLI carries its own login state, so
// the gateway needs no vendor API key for this provider.
type Adapter struct {
	name     string
	binary   string
	resolver *auth.Resolver
	probe    *auth.CLIProbe

	// runCmd and probeCheck are exec seams for tests.
	runCmd     func(ctx context.Context, args []string, env []string, stdin string) (*exec.Cmd, error)
	probeCheck func(ctx context.Context) error
}

func New(cfg provider.Config) (provider.Provider, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("clicmd: resolver is required")
	}
	binary := cfg.Extra["binary"]
	if binary == "" {
		return nil, fmt.Errorf("clicmd: Extra[binary] is required")
	}
	minVersion := cfg.Extra["min_version"]
	if minVersion == "" {
		minVersion = "1.0.0"
	}
	probe, err := auth.NewCLIProbe(binary, minVersion)
	if err != nil {
		return nil, err
	}
	a := &Adapter{
		name:     cfg.Name,
		binary:   binary,
		resolver: cfg.Resolver,
		probe:    probe,
	}
	a.runCmd = a.execCmd
	a.probeCheck = probe.Check
	return a, nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) execCmd(ctx context.Context, args []string, env []string, stdin string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, a.binary, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = strings.NewReader(stdin)
	return cmd, nil
}

func (a *Adapter) StreamResponse(ctx context.Context, req *api.StreamRequest) <-chan api.Event {
	ch := make(chan api.Event)
	go func() {
		defer close(ch)

		if err := a.probeCheck(ctx); err != nil {
			emit(ctx, ch, api.ErrorEvent(err))
			return
		}

		args := []string{"-p", "--output-format", "stream-json", "--verbose"}
		if model := upstreamModel(req.Model); model != "" {
			args = append(args, "--model", model)
		}
		if req.System != "" {
			args = append(args, "--system-prompt", req.System)
		}

		var env []string
		if cred, err := a.resolver.Resolve(ctx); err == nil && cred.AuthToken != "" {
			env = append(env, "CLAUDE_CODE_OAUTH_TOKEN="+cred.AuthToken)
		}

		cmd, err := a.runCmd(ctx, args, env, renderPrompt(req.Messages))
		if err != nil {
			emit(ctx, ch, api.ErrorEvent(err))
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			emit(ctx, ch, api.ErrorEvent(err))
			return
		}
		if err := cmd.Start(); err != nil {
			emit(ctx, ch, api.Errorf("clicmd: start %s: %v", a.binary, err))
			return
		}

		state := newStreamState()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		cancelled := false
		for scanner.Scan() {
			for _, ev := range state.consume(scanner.Bytes()) {
				if !emit(ctx, ch, ev) {
					cancelled = true
					break
				}
			}
			if cancelled {
				break
			}
		}
		waitErr := cmd.Wait()
		if cancelled || ctx.Err() != nil {
			return
		}
		if state.terminal {
			return
		}
		if waitErr != nil {
			emit(ctx, ch, api.Errorf("clicmd: %s exited: %v", a.binary, waitErr))
			return
		}
		emit(ctx, ch, api.Complete("stop"))
	}()
	return ch
}

func emit(ctx context.Context, ch chan<- api.Event, ev api.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func upstreamModel(id string) string {
	if _, rest, found := strings.Cut(id, "/"); found {
		return rest
	}
	return id
}

// renderPrompt flattens the conversation into the plain-text prompt the CLI
// expects on stdin.
func renderPrompt(messages []api.Message) string {
	var b strings.Builder
	for _, m := range messages {
		text := m.Content.Text
		if m.Content.Blocks != nil {
			for _, block := range m.Content.Blocks {
				if block.Type == api.BlockText {
					text += block.Text
				}
			}
		}
		if text == "" {
			continue
		}
		if m.Role != api.RoleUser {
			fmt.Fprintf(&b, "[%s]\n", m.Role)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// ListModels returns the aliases the CLI resolves itself; there is no remote
// listing endpoint behind it.
func (a *Adapter) ListModels(context.Context) ([]string, error) {
	return []string{"sonnet", "opus", "haiku"}, nil
}

func (a *Adapter) Verify(ctx context.Context) error {
	return a.probe.Check(ctx)
}
