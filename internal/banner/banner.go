// Package banner renders the startup banner printed by the server.
package banner

import (
	"fmt"
	"strings"

	figure "github.com/common-nighthawk/go-figure"
)

// Build returns the ASCII-art title followed by the endpoints served on addr.
func Build(addr string) string {
	fig := figure.NewFigure("NovaMind", "standard", true)
	art := strings.TrimRight(fig.String(), "\n")

	base := "http://" + displayHost(addr)
	info := []string{
		fmt.Sprintf("Server running on %s", addr),
		fmt.Sprintf("Test endpoint:  %s/test", base),
		fmt.Sprintf("Chat API:       %s/api/chat", base),
		fmt.Sprintf("Image Analysis: %s/api/analyze-image", base),
		fmt.Sprintf("Metrics:        %s/metrics", base),
	}

	var b strings.Builder
	b.WriteString(art)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(info, "\n"))
	return b.String()
}

func displayHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
