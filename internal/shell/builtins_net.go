// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fauxterm/fauxterm/internal/fetch"
)

const (
	curlBodyLimit   = 16 << 10
	curlMaxLines    = 60
	searchLimit     = 5
	maxAITurns      = 20
	defaultPingPort = 443
	maxPingCount    = 10
)

func init() {
	netCmd := func(name, use, summary string, run RunFunc, flags ...FlagInfo) {
		RegisterDefault(NewCommand(name, Spec{
			Category: CategoryNetwork,
			Usage:    use,
			Summary:  summary,
			Flags:    flags,
		}, run))
	}

	RegisterDefault(NewCommand("ai", Spec{
		Category:  CategoryNetwork,
		Privilege: PrivilegeUser,
		Usage:     "[--reset] <message...>",
		Summary:   "chat with the assistant",
		Flags:     []FlagInfo{{Name: "reset", Description: "forget the conversation"}},
	}, runAI))
	netCmd("music", "<search <term...>|play <n>|stop>", "search and play song previews", runMusic)
	netCmd("video", "search <query...>", "search videos", runVideo)
	netCmd("curl", "<url>", "fetch a URL", runCurl)
	netCmd("dig", "<name> [type]", "look up DNS records", runDig)
	netCmd("github", "<user|owner/repo>", "show a GitHub user or repository", runGitHub)
	netCmd("npm", "<package>", "show the latest version of an npm package", runNPM)
	netCmd("shorten", "<url>", "create a short link", runShorten)
	netCmd("unshorten", "<url>", "show where a short link leads", runUnshorten)
	netCmd("weather", "[location...]", "show current weather", runWeather)
	netCmd("isdown", "<url|host>", "check whether a site is reachable", runIsDown)
	netCmd("geoip", "[ip|host]", "locate an IP address", runGeoIP)
	netCmd("ping", "[-c N] [-p port] <host>", "measure TCP connect latency", runPing,
		FlagInfo{Name: "c", Description: "number of probes", TakesValue: true},
		FlagInfo{Name: "p", Description: "TCP port (default 443)", TakesValue: true})
}

// netErr maps an upstream failure to what the user sees: a not-found line
// for 404s, the guard's reason for blocked targets, a generic failure
// otherwise.
func netErr(err error, what string) error {
	switch {
	case fetch.IsNotFound(err):
		return fmt.Errorf("%s: not found", what)
	case errors.Is(err, fetch.ErrBlockedDestination), errors.Is(err, fetch.ErrMissingAPIKey):
		return err
	case errors.Is(err, context.Canceled):
		return errors.New("interrupted")
	}
	return upstream(err)
}

// withScheme adds https:// to bare hosts.
func withScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

func runAI(ctx context.Context, env *Env, args []string) (Output, error) {
	s := env.Session
	rest := args[1:]
	if len(rest) > 0 && rest[0] == "--reset" {
		s.aiTurns = nil
		rest = rest[1:]
		if len(rest) == 0 {
			return Lines("Conversation cleared."), nil
		}
	}
	if len(rest) == 0 {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}

	turns := append(s.aiTurns, fetch.Turn{Role: "user", Text: strings.Join(rest, " ")})
	reply, err := net.AI.Reply(ctx, turns)
	if err != nil {
		return Output{}, netErr(err, "ai")
	}
	turns = append(turns, fetch.Turn{Role: "assistant", Text: reply})
	if len(turns) > maxAITurns {
		turns = turns[len(turns)-maxAITurns:]
	}
	s.aiTurns = turns
	return Text(reply), nil
}

func runMusic(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	s := env.Session
	switch args[1] {
	case "search":
		if len(args) < 3 {
			return Output{}, env.Usage()
		}
		net, err := env.Net()
		if err != nil {
			return Output{}, err
		}
		term := strings.Join(args[2:], " ")
		tracks, err := net.Music.Search(ctx, term, searchLimit)
		if err != nil {
			return Output{}, netErr(err, term)
		}
		s.tracks = tracks
		if len(tracks) == 0 {
			return Linef("no tracks found for %q", term), nil
		}
		lines := make([]string, 0, len(tracks)+1)
		for n, t := range tracks {
			lines = append(lines, fmt.Sprintf("%d. %s by %s (%s)", n+1, t.Name, t.Artist, t.Album))
		}
		lines = append(lines, "Use 'music play <n>' to play a preview.")
		return Output{Lines: lines}, nil
	case "play":
		if len(args) != 3 {
			return Output{}, env.Usage()
		}
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 || n > len(s.tracks) {
			return Output{}, errors.New("no such track; run 'music search' first")
		}
		t := s.tracks[n-1]
		s.playing = t.Name
		lines := []string{fmt.Sprintf("Now playing: %s by %s", t.Name, t.Artist)}
		if t.PreviewURL != "" {
			lines = append(lines, "Preview: "+t.PreviewURL)
		}
		return Output{Lines: lines}, nil
	case "stop":
		if s.playing == "" {
			return Lines("Nothing is playing."), nil
		}
		name := s.playing
		s.playing = ""
		return Linef("Stopped %s.", name), nil
	}
	return Output{}, env.Usage()
}

func runVideo(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 3 || args[1] != "search" {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	query := strings.Join(args[2:], " ")
	hits, err := net.Video.Search(ctx, query, searchLimit)
	if err != nil {
		return Output{}, netErr(err, query)
	}
	if len(hits) == 0 {
		return Linef("no videos found for %q", query), nil
	}
	var lines []string
	for n, h := range hits {
		lines = append(lines, fmt.Sprintf("%d. %s (%s)", n+1, h.Title, h.Channel), "   "+h.URL())
	}
	return Output{Lines: lines}, nil
}

func runCurl(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	page, err := net.Client.Fetch(ctx, withScheme(args[1]), curlBodyLimit)
	if err != nil {
		return Output{}, netErr(err, args[1])
	}

	lines := []string{fmt.Sprintf("HTTP %s", page.Status)}
	if page.ContentType != "" {
		lines = append(lines, "Content-Type: "+page.ContentType)
	}
	lines = append(lines, "")
	body := splitLines(page.Body)
	if len(body) > curlMaxLines {
		body = body[:curlMaxLines]
		page.Truncated = true
	}
	lines = append(lines, body...)
	if page.Truncated {
		lines = append(lines, "[output truncated]")
	}
	return Output{Lines: lines}, nil
}

func runDig(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 || len(args) > 3 {
		return Output{}, env.Usage()
	}
	rrType := "A"
	if len(args) == 3 {
		rrType = strings.ToUpper(args[2])
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	reply, err := net.DNS.Lookup(ctx, args[1], rrType)
	if err != nil {
		return Output{}, netErr(err, args[1])
	}
	if len(reply.Answer) == 0 {
		return Linef("no %s records for %s", rrType, args[1]), nil
	}
	lines := make([]string, 0, len(reply.Answer))
	for _, a := range reply.Answer {
		lines = append(lines, fmt.Sprintf("%s\t%d\tIN\t%s\t%s", a.Name, a.TTL, fetch.TypeName(a.Type), a.Data))
	}
	return Output{Lines: lines}, nil
}

func runGitHub(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	target := strings.Trim(args[1], "/")
	if strings.Contains(target, "/") {
		r, err := net.GitHub.Repo(ctx, target)
		if err != nil {
			return Output{}, netErr(err, target)
		}
		return Lines(
			r.FullName,
			orDash(r.Description),
			fmt.Sprintf("Language: %s  Stars: %d  Forks: %d  Open issues: %d", orDash(r.Language), r.Stars, r.Forks, r.OpenIssues),
			r.HTMLURL,
		), nil
	}
	u, err := net.GitHub.User(ctx, target)
	if err != nil {
		return Output{}, netErr(err, target)
	}
	name := u.Login
	if u.Name != "" {
		name = fmt.Sprintf("%s (%s)", u.Name, u.Login)
	}
	return Lines(
		name,
		orDash(u.Bio),
		fmt.Sprintf("Repos: %d  Followers: %d  Following: %d", u.PublicRepos, u.Followers, u.Following),
		u.HTMLURL,
	), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runNPM(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	p, err := net.NPM.Latest(ctx, args[1])
	if err != nil {
		return Output{}, netErr(err, args[1])
	}
	lines := []string{
		fmt.Sprintf("%s@%s", p.Name, p.Version),
		orDash(p.Description),
		"License: " + orDash(p.LicenseName()),
	}
	if p.Homepage != "" {
		lines = append(lines, p.Homepage)
	}
	return Output{Lines: lines}, nil
}

func runShorten(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	short, err := net.Shortener.Shorten(ctx, withScheme(args[1]))
	if err != nil {
		return Output{}, netErr(err, args[1])
	}
	return Lines(short), nil
}

func runUnshorten(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	chain, err := net.Shortener.Expand(ctx, withScheme(args[1]))
	if err != nil {
		return Output{}, netErr(err, args[1])
	}
	if len(chain) == 1 {
		return Linef("%s does not redirect", chain[0]), nil
	}
	lines := make([]string, 0, len(chain))
	for n, hop := range chain {
		prefix := "  -> "
		if n == 0 {
			prefix = ""
		}
		lines = append(lines, prefix+hop)
	}
	return Output{Lines: lines}, nil
}

func runWeather(ctx context.Context, env *Env, args []string) (Output, error) {
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	location := strings.Join(args[1:], " ")
	c, err := net.Weather.Current(ctx, location)
	if err != nil {
		return Output{}, netErr(err, location)
	}
	return Lines(
		"Weather for "+orDash(c.Location),
		fmt.Sprintf("%s, %s°C (feels like %s°C)", orDash(c.Description), c.TempC, c.FeelsLikeC),
		fmt.Sprintf("Humidity %s%%  Wind %s km/h", c.Humidity, c.WindKmph),
	), nil
}

func runIsDown(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{}, env.Usage()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	target := withScheme(args[1])
	a, err := net.Client.Check(ctx, target)
	if err != nil {
		if errors.Is(err, fetch.ErrBlockedDestination) {
			return Output{}, err
		}
		return Linef("%s looks down from here (%v)", args[1], err), nil
	}
	if !a.Up {
		return Linef("%s is down (HTTP %d)", args[1], a.StatusCode), nil
	}
	return Linef("%s is up (HTTP %d in %s)", args[1], a.StatusCode, a.Latency.Round(time.Millisecond)), nil
}

func runGeoIP(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) > 2 {
		return Output{}, env.Usage()
	}
	var target string
	if len(args) == 2 {
		target = args[1]
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			target = u.Hostname()
		}
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}
	loc, err := net.GeoIP.Locate(ctx, target)
	if err != nil {
		return Output{}, netErr(err, target)
	}
	return Lines(
		"IP:       "+loc.Query,
		"Location: "+strings.Join(nonEmpty(loc.City, loc.Region, loc.Country), ", "),
		fmt.Sprintf("Coords:   %.4f, %.4f", loc.Lat, loc.Lon),
		"ISP:      "+orDash(loc.ISP),
		"Timezone: "+orDash(loc.Timezone),
	), nil
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runPing(ctx context.Context, env *Env, args []string) (Output, error) {
	fs := newFlagSet("ping")
	count := fs.Int("c", 4, "probes")
	port := fs.Int("p", defaultPingPort, "port")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 1 {
		return Output{}, env.Usage()
	}
	if *count < 1 || *count > maxPingCount {
		return Output{}, fmt.Errorf("count must be between 1 and %d", maxPingCount)
	}
	if *port < 1 || *port > 65535 {
		return Output{}, errors.New("invalid port")
	}
	host := fs.Arg(0)
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	net, err := env.Net()
	if err != nil {
		return Output{}, err
	}

	lines := []string{fmt.Sprintf("PING %s port %d (tcp connect)", host, *port)}
	var (
		ok            int
		total, lo, hi time.Duration
	)
	for seq := 1; seq <= *count; seq++ {
		d, err := net.Client.Ping(ctx, host, *port)
		if err != nil {
			if errors.Is(err, fetch.ErrBlockedDestination) {
				return Output{}, err
			}
			lines = append(lines, fmt.Sprintf("seq=%d failed: %v", seq, err))
			continue
		}
		ok++
		total += d
		if lo == 0 || d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
		lines = append(lines, fmt.Sprintf("connected to %s: seq=%d time=%s", host, seq, d.Round(time.Microsecond)))
	}

	loss := 100 * (*count - ok) / *count
	lines = append(lines, "", fmt.Sprintf("--- %s ping statistics ---", host),
		fmt.Sprintf("%d probes, %d connected, %d%% loss", *count, ok, loss))
	if ok > 0 {
		avg := total / time.Duration(ok)
		lines = append(lines, fmt.Sprintf("min/avg/max = %s/%s/%s", lo.Round(time.Microsecond), avg.Round(time.Microsecond), hi.Round(time.Microsecond)))
	}
	return Output{Lines: lines}, nil
}
