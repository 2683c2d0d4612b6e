package allowlist

import "github.com/volkan-m/ssh-mcp-server/internal/model"

// Character classes reused by the default patterns. None of them accepts shell
// metacharacters, quotes, whitespace other than a plain space, or newlines.
const (
	unitClass   = `[a-zA-Z0-9_.@-]+`
	nameClass   = `[a-zA-Z0-9_.-]+`
	pathClass   = `/[a-zA-Z0-9_./-]+`
	fileClass   = `[a-zA-Z0-9_./-]+`
	urlClass    = `https?://[a-zA-Z0-9._/:-]+`
	sinceClass  = `('[a-zA-Z0-9 :_+-]+'|"[a-zA-Z0-9 :_+-]+"|[a-zA-Z0-9:_+-]+)`
	globClass   = `('[a-zA-Z0-9_.*?-]+'|"[a-zA-Z0-9_.*?-]+"|[a-zA-Z0-9_.-]+)`
	dockerFlags = `( --?[a-zA-Z][a-zA-Z0-9-]*(=[a-zA-Z0-9_.-]+)?( [0-9]+)?)*`
)

var defaultPatterns = []model.AllowPattern{
	// Systemd services.
	{Expr: `^systemctl (status|restart|stop|start|enable|disable|is-active|is-enabled) ` + unitClass + `$`, Description: "Manage a systemd unit"},

	// Logs.
	{Expr: `^journalctl -u ` + unitClass + ` -n \d+$`, Description: "Last N journal lines of a unit"},
	{Expr: `^journalctl -u ` + unitClass + ` --since ` + sinceClass + `$`, Description: "Journal of a unit since a point in time"},
	{Expr: `^tail -n \d+ /var/log/` + fileClass + `$`, Description: "Last N lines of a file under /var/log"},

	// System status.
	{Expr: `^df -h$`, Description: "Disk usage"},
	{Expr: `^free -h$`, Description: "Memory usage"},
	{Expr: `^uptime$`, Description: "System uptime"},
	{Expr: `^top -bn1$`, Description: "Process snapshot"},
	{Expr: `^htop -n 1 --no-color$`, Description: "Process snapshot (htop)"},
	{Expr: `^vmstat$`, Description: "Virtual memory statistics"},
	{Expr: `^iostat$`, Description: "I/O statistics"},

	// Docker and compose.
	{Expr: `^docker ps( -a)?$`, Description: "List containers"},
	{Expr: `^docker logs ` + nameClass + ` --tail \d+$`, Description: "Last N log lines of a container"},
	{Expr: `^docker stats --no-stream$`, Description: "Container resource usage"},
	{Expr: `^docker-compose -f ` + fileClass + ` ps$`, Description: "List compose services"},
	{Expr: `^docker-compose -f ` + fileClass + ` (up|down|restart)( -d)?$`, Description: "Manage a compose project"},
	{Expr: `^docker (restart|stop|start|inspect)` + dockerFlags + ` ` + nameClass + `$`, Description: "Manage a container"},

	// Processes.
	{Expr: `^ps aux \| grep ` + nameClass + `$`, Description: "Find processes by name"},
	{Expr: `^pgrep -l ` + nameClass + `$`, Description: "Find process IDs by name"},

	// Network.
	{Expr: `^netstat -tuln$`, Description: "Listening sockets (netstat)"},
	{Expr: `^ss -tuln$`, Description: "Listening sockets (ss)"},
	{Expr: `^curl -I ` + urlClass + `$`, Description: "HTTP headers of a URL"},
	{Expr: `^curl ` + urlClass + `$`, Description: "HTTP GET of a URL"},

	// File system (read only).
	{Expr: `^ls -lah ` + pathClass + `$`, Description: "List a directory"},
	{Expr: `^cat ` + pathClass + `$`, Description: "Print a file"},
	{Expr: `^head -n \d+ ` + pathClass + `$`, Description: "First N lines of a file"},
	{Expr: `^find ` + pathClass + ` -type f -name ` + globClass + `$`, Description: "Find files by name"},

	// Git (read only).
	{Expr: `^git -C ` + pathClass + ` status$`, Description: "Git status of a repository"},
	{Expr: `^git -C ` + pathClass + ` log -n \d+$`, Description: "Last N commits of a repository"},
	{Expr: `^git -C ` + pathClass + ` diff$`, Description: "Git diff of a repository"},
	{Expr: `^git -C ` + pathClass + ` branch$`, Description: "Git branches of a repository"},
}

// DefaultPatterns returns a copy of the built-in allow patterns in order.
func DefaultPatterns() []model.AllowPattern {
	ps := make([]model.AllowPattern, len(defaultPatterns))
	copy(ps, defaultPatterns)
	return ps
}
