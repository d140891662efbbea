package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/archive"
	"github.com/JakeFAU/sitecopier/internal/crawler"
	"github.com/JakeFAU/sitecopier/internal/fetcher"
	"github.com/JakeFAU/sitecopier/internal/publisher"
	"github.com/JakeFAU/sitecopier/internal/rewrite"
	"github.com/JakeFAU/sitecopier/internal/site"
	"github.com/JakeFAU/sitecopier/internal/storage"
	"github.com/JakeFAU/sitecopier/internal/urlnorm"
)

type scanRequest struct {
	URL          string `json:"url"`
	MaxDepth     *int   `json:"maxDepth"`
	MaxPages     *int   `json:"maxPages"`
	UsePuppeteer *bool  `json:"usePuppeteer"`
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	opts := crawler.Options{
		MaxDepth:         valueOrDefault(req.MaxDepth, s.cfg.Crawler.MaxDepthDefault),
		MaxPages:         valueOrDefault(req.MaxPages, s.cfg.Crawler.MaxPagesDefault),
		UseRenderedFetch: valueOrDefault(req.UsePuppeteer, true) && s.cfg.Headless.Enabled,
	}

	inv, err := s.deps.Scanner.Scan(r.Context(), u.String(), opts)
	if err != nil {
		s.logger.Warn("scan failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, inv.Summary(u.String()))
}

type analyzeRequest struct {
	URL string `json:"url"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	ctx, cancel := withTimeout(r.Context(), s.cfg.Analyzer.FetchTimeout())
	defer cancel()

	analysis, err := s.deps.Analyzer.Analyze(ctx, req.URL)
	if err != nil {
		s.logger.Warn("analyze failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type replaceRequest struct {
	URL           string           `json:"url"`
	Type          string           `json:"type"`
	Selector      string           `json:"selector"`
	NewContent    string           `json:"newContent"`
	NewHref       string           `json:"newHref"`
	Action        site.PixelAction `json:"action"`
	PixelType     site.PixelVendor `json:"pixelType"`
	NewPixelHTML  string           `json:"newPixelHtml"`
	NewPixelToken string           `json:"newPixelToken"`
}

type replaceResponse struct {
	Success      bool   `json:"success"`
	ModifiedHTML string `json:"modifiedHtml"`
	OriginalURL  string `json:"originalUrl"`
	Outcome      string `json:"outcome"`
}

func (s *Server) replace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" || req.Selector == "" {
		writeError(w, http.StatusBadRequest, "url and selector are required")
		return
	}

	var op func(src string) (rewrite.Result, error)
	switch {
	case req.Action == site.ActionRemove:
		op = func(src string) (rewrite.Result, error) { return rewrite.RemoveHTML(src, req.Selector) }
	case req.Type == "button":
		if req.NewContent == "" {
			writeError(w, http.StatusBadRequest, "newContent is required for button edits")
			return
		}
		edit := rewrite.ButtonEdit{Selector: req.Selector, NewText: req.NewContent, NewHref: req.NewHref}
		op = func(src string) (rewrite.Result, error) { return rewrite.ReplaceButtonHTML(src, edit) }
	case req.Type == "pixel":
		if req.NewPixelHTML == "" && req.NewPixelToken == "" {
			writeError(w, http.StatusBadRequest, "newPixelHtml or newPixelToken is required for pixel edits")
			return
		}
		vendor := req.PixelType
		if vendor == "" {
			vendor = site.VendorFacebook
		}
		edit := rewrite.PixelEdit{Selector: req.Selector, Vendor: vendor, NewHTML: req.NewPixelHTML, NewToken: req.NewPixelToken}
		op = func(src string) (rewrite.Result, error) { return rewrite.ReplacePixelHTML(src, edit) }
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown edit type %q", req.Type))
		return
	}

	ctx, cancel := withTimeout(r.Context(), s.cfg.Analyzer.FetchTimeout())
	defer cancel()
	page, err := s.deps.Fetcher.Fetch(ctx, req.URL)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	res, err := op(string(page.Body))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, replaceResponse{
		Success:      true,
		ModifiedHTML: res.HTML,
		OriginalURL:  req.URL,
		Outcome:      res.Outcome.String(),
	})
}

type downloadRequest struct {
	URL   string             `json:"url"`
	Files []site.ScannedFile `json:"files"`
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case req.URL != "":
		s.downloadOne(w, r, req.URL)
	case len(req.Files) > 0:
		inv := site.FromFiles(req.Files)
		blob, report, err := s.deps.Archiver.Build(r.Context(), inv, nil, nil)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeArchive(w, archive.ArchiveName(inv, false), blob, report)
	default:
		writeError(w, http.StatusBadRequest, "url or files is required")
	}
}

func (s *Server) downloadOne(w http.ResponseWriter, r *http.Request, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	page, err := s.deps.Fetcher.Fetch(r.Context(), rawURL)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	name := path.Base(u.Path)
	if u.Path == "" || u.Path[len(u.Path)-1] == '/' {
		name = "index.html"
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", attachment(name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page.Body); err != nil {
		s.logger.Warn("write download failed", zap.String("url", rawURL), zap.Error(err))
	}
}

type downloadWithReplacementsRequest struct {
	Files        []site.ScannedFile `json:"files"`
	Replacements struct {
		Buttons []site.ButtonReplacement `json:"buttons"`
		Pixels  []site.PixelReplacement  `json:"pixels"`
	} `json:"replacements"`
}

func (s *Server) downloadWithReplacements(w http.ResponseWriter, r *http.Request) {
	var req downloadWithReplacementsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "files is required")
		return
	}
	inv := site.FromFiles(req.Files)
	blob, report, err := s.deps.Archiver.Build(r.Context(), inv,
		site.GroupButtons(req.Replacements.Buttons),
		site.GroupPixels(req.Replacements.Pixels))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	name := archive.ArchiveName(inv, true)
	if uri := s.persist(r.Context(), inv, name, blob, report); uri != "" {
		w.Header().Set("X-Archive-URI", uri)
	}
	writeArchive(w, name, blob, report)
}

// persist stores the archive and announces it. Failures are logged; the download still succeeds.
func (s *Server) persist(ctx context.Context, inv *site.Inventory, name string, blob []byte, report archive.Report) string {
	if s.deps.Store == nil {
		return ""
	}
	logger := s.logger.With(zap.String("request_id", requestID(ctx)), zap.String("archive", name))
	id, err := s.deps.IDs.NewID()
	if err != nil {
		logger.Error("archive id generation failed", zap.Error(err))
		return ""
	}
	domain := ""
	if files := inv.Files(); len(files) > 0 {
		if u, err := url.Parse(files[0].URL); err == nil {
			domain = u.Hostname()
		}
	}
	now := s.deps.Now().UTC()
	key := storage.ArchiveKey(s.cfg.Storage.Prefix, domain, name, id, now)
	uri, err := s.deps.Store.PutObject(ctx, key, storage.ZipContentType, bytes.NewReader(blob))
	if err != nil {
		logger.Error("archive upload failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	logger.Info("archive stored", zap.String("uri", uri), zap.Int("bytes", len(blob)))

	if s.deps.Publisher == nil || s.cfg.PubSub.TopicName == "" {
		return uri
	}
	event := publisher.ArchiveStored{
		ID:               id.String(),
		URI:              uri,
		Name:             name,
		Domain:           domain,
		Entries:          report.Entries,
		Skipped:          len(report.Skipped),
		Bytes:            len(blob),
		SHA256:           report.SHA256,
		WithReplacements: true,
		StoredAt:         now,
	}
	if msgID, err := s.deps.Publisher.Publish(ctx, s.cfg.PubSub.TopicName, event); err != nil {
		logger.Error("archive event publish failed", zap.Error(err))
	} else {
		logger.Debug("archive event published", zap.String("message_id", msgID))
	}
	return uri
}

func writeArchive(w http.ResponseWriter, name string, blob []byte, report archive.Report) {
	w.Header().Set("Content-Type", storage.ZipContentType)
	w.Header().Set("Content-Disposition", attachment(name))
	w.Header().Set("X-Archive-Entries", strconv.Itoa(report.Entries))
	w.Header().Set("X-Archive-Skipped", strconv.Itoa(len(report.Skipped)))
	w.Header().Set("X-Archive-SHA256", report.SHA256)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob); err != nil {
		zap.L().Warn("write archive failed", zap.String("archive", name), zap.Error(err))
	}
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var netErr *fetcher.NetworkError
	var renderErr *fetcher.RenderError
	switch {
	case errors.Is(err, urlnorm.ErrInvalid),
		errors.Is(err, rewrite.ErrInvalidSelector),
		errors.Is(err, archive.ErrEmptyInventory):
		return http.StatusBadRequest
	case errors.Is(err, crawler.ErrSeedFetch),
		errors.As(err, &netErr),
		errors.As(err, &renderErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}
