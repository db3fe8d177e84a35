package plan

import (
	"net/url"
	"strings"
)

// 购买链接追加的跟踪参数 / Tracking parameter appended to purchase links
const (
	trackingKey   = "ref"
	trackingValue = "renoplan"
)

// retailDomains 识别的零售域名；其它域名原样放行
// Recognized retail domains; links anywhere else pass through unchanged.
var retailDomains = []string{
	"amazon.com",
	"homedepot.com",
	"lowes.com",
	"menards.com",
	"acehardware.com",
	"wayfair.com",
	"screwfix.com",
	"wickes.co.uk",
}

// Normalize 在 schema 校验之后、合并进任务之前执行一次：为识别的零售
// 链接幂等地追加跟踪参数。
// Normalize runs once after schema validation and before the payload is
// merged into task state. It appends the tracking parameter to purchase
// links on recognized retail domains, idempotently: re-normalizing an
// already tagged link is a no-op, never a double append.
func (p *Payload) Normalize() {
	if p == nil {
		return
	}
	for i := range p.Materials {
		p.Materials[i].PurchaseLink = NormalizeLink(p.Materials[i].PurchaseLink)
	}
}

// NormalizeLink rewrites a single purchase link. Unparseable links and
// unrecognized domains are returned unchanged. The parameter goes into
// the query string proper, so links carrying a fragment keep it at the
// tail where it belongs.
func NormalizeLink(link string) string {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return link
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return link
	}
	if !recognizedRetailHost(u.Host) {
		return link
	}
	if u.Query().Get(trackingKey) == trackingValue {
		return link
	}
	// 追加而非 Encode 重排，保留已有参数顺序
	// Appended rather than re-encoded to keep existing parameter order.
	if u.RawQuery == "" {
		u.RawQuery = trackingKey + "=" + trackingValue
	} else {
		u.RawQuery += "&" + trackingKey + "=" + trackingValue
	}
	return u.String()
}

func recognizedRetailHost(host string) bool {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	host = strings.TrimPrefix(host, "www.")
	for _, domain := range retailDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
