package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// MediaProfile is what the prober learned from the leading bytes of a media
// file. Width and Height are zero when the header was not recognized.
type MediaProfile struct {
	ContentType   string            `json:"content_type,omitempty"`
	Format        ImageFormat       `json:"format"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	BytesRead     int               `json:"bytes_read"`
	Complete      bool              `json:"complete"`
	Provenance    *Provenance       `json:"provenance,omitempty"`
	Exif          map[string]string `json:"exif,omitempty"`
	Blurhash      string            `json:"blurhash,omitempty"`
	DominantColor string            `json:"dominant_color,omitempty"`
}

// MediaProber fetches just enough of a remote file to read its header.
type MediaProber struct {
	config ProbeConfig
	client *http.Client
}

// NewMediaProber builds a prober. With a nil client it dials through a guard
// that refuses loopback, private and link-local addresses unless
// config.AllowPrivate is set. A caller-supplied client is used as is.
func NewMediaProber(config ProbeConfig, client *http.Client) *MediaProber {
	if config.MaxBytes <= 0 {
		config.MaxBytes = 256 * 1024
	}
	if client == nil {
		client = newProbeClient(config)
	}
	return &MediaProber{config: config, client: client}
}

var (
	ErrUnsupportedScheme = errors.New("media url must be http or https")
	ErrForbiddenAddress  = errors.New("media url resolves to a non-public address")
)

func newProbeClient(config ProbeConfig) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	if !config.AllowPrivate {
		dialer.Control = refuseInternal
	}
	transport := &http.Transport{
		// No proxy: the guard must see the real destination.
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: config.Timeout,
	}
	return &http.Client{Timeout: config.Timeout, Transport: transport}
}

// refuseInternal runs after DNS resolution for every connection, redirects
// included, so a public name pointing at an internal address is caught too.
func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// Probe requests the first MaxBytes of mediaURL and sniffs its dimensions.
// An unrecognized header is not an error; the profile is returned without
// dimensions.
func (p *MediaProber) Probe(ctx context.Context, mediaURL string) (*MediaProfile, error) {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid media url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-"+strconv.Itoa(p.config.MaxBytes-1))
	req.Header.Set("Accept", "image/*,*/*;q=0.8")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("failed to fetch media: status %d", resp.StatusCode)
	}

	// Servers that ignore Range send the whole file; never read past MaxBytes.
	body := io.LimitReader(resp.Body, int64(p.config.MaxBytes))
	header, head, err := SniffReader(body, p.config.MaxBytes)
	if err != nil && !errors.Is(err, ErrNotRecognized) {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}

	profile := &MediaProfile{
		ContentType: strings.TrimSpace(resp.Header.Get("Content-Type")),
		BytesRead:   len(head),
	}
	if err == nil {
		profile.Format = header.Format
		profile.Width = int(header.Width)
		profile.Height = int(header.Height)
	}

	// Pull the remainder of the probe window for metadata scanning.
	if len(head) < p.config.MaxBytes {
		rest, rerr := io.ReadAll(body)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read media: %w", rerr)
		}
		head = append(head, rest...)
		profile.BytesRead = len(head)
	}
	profile.Complete = isComplete(resp, len(head), p.config.MaxBytes)

	if prov, ok := DetectProvenance(head); ok {
		profile.Provenance = &prov
	}
	profile.Exif = ExifSummary(head)
	if p.config.Preview && profile.Complete {
		if hash, dominant, perr := BuildPreview(head); perr == nil {
			profile.Blurhash = hash
			profile.DominantColor = dominant
		}
	}
	return profile, nil
}

// isComplete reports whether head holds the entire file.
func isComplete(resp *http.Response, n, limit int) bool {
	if resp.StatusCode == http.StatusPartialContent {
		// Content-Range: bytes 0-999/1000
		cr := resp.Header.Get("Content-Range")
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			total, err := strconv.Atoi(cr[i+1:])
			return err == nil && total == n
		}
		return false
	}
	return n < limit
}
