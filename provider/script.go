package provider

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"quarterload/util"
)

// Script provides a float value source from the output of an external command
type Script struct {
	log     *util.Logger
	script  string
	timeout time.Duration
	scale   float64
	cache   time.Duration
	updated time.Time
	val     float64
	err     error
}

func init() {
	registry.Add("script", NewScriptProviderFromConfig)
}

// NewScriptProviderFromConfig creates a script provider
func NewScriptProviderFromConfig(other map[string]interface{}) (FloatProvider, error) {
	cc := struct {
		Cmd     string
		Timeout time.Duration
		Scale   float64
		Cache   time.Duration
	}{
		Timeout: 5 * time.Second,
		Scale:   1,
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	if cc.Cmd == "" {
		return nil, errors.New("missing cmd")
	}

	return &Script{
		log:     util.NewLogger("script"),
		script:  cc.Cmd,
		timeout: cc.Timeout,
		scale:   cc.Scale,
		cache:   cc.Cache,
	}, nil
}

// exec runs the command and returns its trimmed stdout
func (p *Script) exec(script string) (string, error) {
	args, err := shellquote.Split(script)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	b, err := cmd.Output()

	s := strings.TrimSpace(string(b))

	if err != nil {
		// surface stderr if available
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			s = strings.TrimSpace(string(ee.Stderr))
		}

		p.log.ERROR.Printf("%s: %s", strings.Join(args, " "), s)
		return "", err
	}

	p.log.TRACE.Printf("%s: %s", strings.Join(args, " "), s)

	return s, nil
}

// FloatGetter parses a float from the command output, caching the result for
// the configured duration
func (p *Script) FloatGetter() func() (float64, error) {
	return p.floatGetter
}

func (p *Script) floatGetter() (float64, error) {
	if time.Since(p.updated) > p.cache {
		var s string
		s, p.err = p.exec(p.script)

		if p.err == nil {
			var f float64
			if f, p.err = strconv.ParseFloat(s, 64); p.err != nil {
				p.err = fmt.Errorf("invalid output '%s'", s)
			}
			p.val = f * p.scale
		}

		if p.err == nil {
			p.updated = time.Now()
		}
	}

	return p.val, p.err
}
