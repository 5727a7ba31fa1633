package clipper

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"cooking-ops/internal/ghost"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/shared"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// RecipeSaver stores a clipped recipe.
type RecipeSaver interface {
	Save(ctx context.Context, rec recipe.Recipe) error
}

// Result describes a clipped recipe. Post is set when the recipe was also
// published to Ghost.
type Result struct {
	Recipe recipe.Recipe
	Meta   shared.AgentMeta
	Post   *ghost.Post
}

// Clipper fetches a recipe page, extracts a structured recipe from it and adds
// it to the catalog.
type Clipper struct {
	httpClient  *http.Client
	extractor   *recipe.Extractor
	store       RecipeSaver
	ghostClient ghost.Client
	log         *zap.Logger
}

// NewClipper creates a Clipper. ghostClient may be nil to skip publishing.
func NewClipper(extractor *recipe.Extractor, store RecipeSaver, ghostClient ghost.Client, log *zap.Logger) *Clipper {
	return &Clipper{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		extractor:   extractor,
		store:       store,
		ghostClient: ghostClient,
		log:         log,
	}
}

// ClipURL fetches url, extracts the recipe and saves it. A failed Ghost publish
// is logged and does not fail the clip. The returned Meta is valid whenever the
// extractor was called, even on error.
func (c *Clipper) ClipURL(ctx context.Context, url string) (*Result, error) {
	content, err := c.fetchAndCleanHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	extracted, err := c.extractor.ExtractRecipe(ctx, recipe.PostData{Title: url, HTML: content, Source: url})
	if err != nil {
		return &Result{Meta: extracted.Meta}, err
	}
	res := &Result{Recipe: extracted.Recipe, Meta: extracted.Meta}

	if err := c.store.Save(ctx, res.Recipe); err != nil {
		return res, fmt.Errorf("failed to save clipped recipe: %w", err)
	}
	c.log.Info("recipe clipped",
		zap.String("url", url),
		zap.String("id", res.Recipe.ID),
		zap.String("dish", res.Recipe.DishName),
	)

	if c.ghostClient == nil {
		return res, nil
	}
	post, err := c.ghostClient.CreatePost(ctx, res.Recipe.DishName, formatToHTML(res.Recipe, url), true)
	if err != nil {
		c.log.Warn("failed to publish clipped recipe to ghost", zap.String("id", res.Recipe.ID), zap.Error(err))
		return res, nil
	}
	res.Post = post
	return res, nil
}

func (c *Clipper) fetchAndCleanHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Strip noise to save tokens.
	doc.Find("script, style, nav, header, footer, iframe, form, .ads, #ads, .comments").Remove()

	var sb strings.Builder
	doc.Find("h1, h2, h3, p, li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
	})
	if sb.Len() == 0 {
		return strings.TrimSpace(doc.Find("body").Text()), nil
	}
	return sb.String(), nil
}

func formatToHTML(r recipe.Recipe, sourceURL string) string {
	esc := html.EscapeString
	var sb strings.Builder
	fmt.Fprintf(&sb, "<p><i>Imported from: <a href=\"%s\">%s</a></i></p>", esc(sourceURL), esc(sourceURL))

	sb.WriteString("<h2>Ingredients</h2><ul>")
	for _, ing := range r.Ingredients {
		if ing.Kitchen != nil {
			fmt.Fprintf(&sb, "<li>%g %s %s</li>", ing.Kitchen.Value, esc(ing.Kitchen.Unit), esc(ing.Name))
			continue
		}
		fmt.Fprintf(&sb, "<li>%s</li>", esc(ing.Name))
	}
	sb.WriteString("</ul>")

	sb.WriteString("<h2>Instructions</h2><ol>")
	for _, step := range r.Steps {
		fmt.Fprintf(&sb, "<li>%s (%d min)</li>", esc(step.Instruction), step.DurationMinutes)
	}
	sb.WriteString("</ol>")

	sb.WriteString("<hr>")
	fmt.Fprintf(&sb, "<p><strong>Category:</strong> %s | <strong>Total Time:</strong> %d min | <strong>Servings:</strong> %d</p>",
		esc(string(r.Category)), r.TotalTime(), r.Servings)

	return sb.String()
}
