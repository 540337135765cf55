/*
Package wordlist provides the candidate label corpus for subdomain brute forcing.

The built-in corpus is a category-tagged base list combined with generated numeric
variants of a few common host tokens. Build is pure and deterministic. Load reads an
operator supplied wordlist file instead.
*/
package wordlist

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Variant selects how rich the generated numeric part of the corpus is.
type Variant string

const (
	// Rich generates {base}{i} and {base}-{i} for six bases and i in [1,10].
	Rich Variant = "rich"
	// Light generates the same shapes for five bases and i in [1,5].
	Light Variant = "light"
)

// ParseVariant maps a flag value to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case Rich, "":
		return Rich, nil
	case Light:
		return Light, nil
	}
	return "", fmt.Errorf("unknown wordlist variant %q (want rich or light)", s)
}

type numbering struct {
	bases []string
	max   int
}

var numberings = map[Variant]numbering{
	Rich:  {bases: []string{"app", "api", "web", "mail", "db", "server"}, max: 10},
	Light: {bases: []string{"api", "app", "web", "mail", "server"}, max: 5},
}

// categoryOrder keeps Build output stable; map iteration order is not.
var categoryOrder = []string{
	"services", "development", "infrastructure", "servers", "databases",
	"monitoring", "cicd", "network", "content", "commerce", "media",
	"geo", "environment", "security",
}

var categories = map[string][]string{
	"services": {
		"www", "mail", "email", "webmail", "secure", "docs", "support", "help",
		"api", "app", "mobile", "m", "admin", "administrator", "login", "portal",
	},
	"development": {
		"dev", "development", "test", "testing", "stage", "staging", "demo",
		"beta", "alpha", "preview", "sandbox", "lab", "labs", "experimental",
	},
	"infrastructure": {
		"ftp", "sftp", "ssh", "vpn", "proxy", "gateway", "firewall", "router",
		"switch", "wifi", "wireless", "remote", "access", "terminal",
	},
	"servers": {
		"server", "host", "node", "cluster", "cloud", "cdn", "cache", "static",
		"assets", "resources", "files", "download", "upload", "backup",
	},
	"databases": {
		"db", "database", "mysql", "postgres", "mongodb", "redis", "elastic",
		"kibana", "grafana", "prometheus", "influx", "cassandra",
	},
	"monitoring": {
		"monitor", "monitoring", "status", "health", "metrics", "stats",
		"analytics", "log", "logs", "syslog", "audit", "trace",
	},
	"cicd": {
		"ci", "cd", "build", "deploy", "jenkins", "gitlab", "github", "git",
		"svn", "repo", "repository", "code", "source", "maven", "nexus",
	},
	"network": {
		"ns", "ns1", "ns2", "ns3", "dns", "mx", "mx1", "mx2", "pop", "pop3",
		"imap", "smtp", "webdisk", "cpanel", "whm", "plesk", "autodiscover", "autoconfig",
	},
	"content": {
		"cms", "blog", "news", "forum", "wiki", "kb", "faq", "community",
		"social", "chat", "message", "feedback", "contact", "about", "wp", "wordpress",
	},
	"commerce": {
		"shop", "store", "cart", "checkout", "payment", "pay", "billing",
		"invoice", "order", "product", "catalog", "inventory",
	},
	"media": {
		"img", "image", "photo", "gallery", "video", "media", "stream",
		"live", "broadcast", "radio", "tv", "podcast",
	},
	"geo": {
		"us", "eu", "asia", "cn", "jp", "uk", "de", "fr", "au", "ca",
		"east", "west", "north", "south", "central",
	},
	"environment": {
		"prod", "production", "live", "staging", "qa", "uat", "sit",
		"internal", "intranet", "extranet", "public", "private",
	},
	"security": {
		"ssl", "tls", "cert", "auth", "oauth", "sso", "ldap", "ad",
		"security", "ids", "ips", "siem", "waf",
	},
}

// Categories returns a copy of the tagged base list.
func Categories() map[string][]string {
	out := make(map[string][]string, len(categories))
	for name, words := range categories {
		out[name] = append([]string(nil), words...)
	}
	return out
}

// Build returns the built-in corpus for v. Labels repeated across categories are
// kept; deduplication happens at the FQDN level in the coordinator.
func Build(v Variant) []string {
	num, ok := numberings[v]
	if !ok {
		num = numberings[Rich]
	}

	size := len(num.bases) * num.max * 2
	for _, words := range categories {
		size += len(words)
	}
	out := make([]string, 0, size)

	for _, name := range categoryOrder {
		out = append(out, categories[name]...)
	}
	for _, base := range num.bases {
		for i := 1; i <= num.max; i++ {
			n := strconv.Itoa(i)
			out = append(out, base+n, base+"-"+n)
		}
	}
	return out
}

// Load reads a wordlist file, one label per line. Blank lines and lines starting
// with '#' are skipped and duplicates dropped, keeping file order.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wordlist %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	seen := make(map[string]struct{}, len(lines))
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; !ok {
			seen[line] = struct{}{}
			result = append(result, line)
		}
	}
	return result, nil
}
