// Package enrich suggests tags for a note by comparing its embedding with a
// fixed tag vocabulary.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

// DefaultVocabulary is the built-in tag vocabulary.
var DefaultVocabulary = []string{
	"核心论点", "数据支撑", "反方观点", "文献引用", "案例分析", "图表数据",
	"研究方法", "章节笔记", "灵感闪念", "美食探店", "景点信息", "活动信息",
	"优惠券", "门票预订", "行程规划", "路线交通", "营业时间", "购物清单",
	"健身打卡", "健康食谱", "情绪记录", "冥想放松", "习惯养成", "健康资讯",
	"运动教程", "身体数据", "学习笔记", "教程资源", "代码片段", "知识概念",
	"实战项目", "文章收藏", "工具推荐", "学习清单",
}

// SegmentLen is the rune length of the segment used as the search query.
const SegmentLen = 512

// Hit is a vocabulary tag with its cosine similarity to a query.
type Hit struct {
	Tag   string  `json:"tag"`
	Score float32 `json:"score"`
}

type Config struct {
	Embedder Embedder

	// Vocabulary defaults to DefaultVocabulary.
	Vocabulary []string

	// TopK defaults to 5.
	TopK int

	// MinScore is the lowest similarity of a tag added by Augment.
	MinScore float32

	Logger *slog.Logger
}

// Enricher holds the embedded vocabulary. A nil *Enricher leaves tags
// unchanged.
type Enricher struct {
	embedder Embedder
	index    *index
	topK     int
	minScore float32
	logger   *slog.Logger
}

// New embeds the vocabulary in one batch.
func New(ctx context.Context, cfg Config) (*Enricher, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("enrich: embedder is required")
	}
	vocab := cfg.Vocabulary
	if len(vocab) == 0 {
		vocab = DefaultVocabulary
	}
	vecs, err := cfg.Embedder.EmbedBatch(ctx, vocab)
	if err != nil {
		return nil, fmt.Errorf("enrich: embed vocabulary: %w", err)
	}
	if len(vecs) != len(vocab) {
		return nil, fmt.Errorf("enrich: got %d vectors for %d tags", len(vecs), len(vocab))
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		embedder: cfg.Embedder,
		index:    &index{tags: slices.Clone(vocab), vectors: vecs},
		topK:     topK,
		minScore: cfg.MinScore,
		logger:   logger,
	}, nil
}

// Search returns the top-k vocabulary tags closest to query, best first.
func (e *Enricher) Search(ctx context.Context, query string) ([]Hit, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("enrich: embed query: %w", err)
	}
	return e.index.search(vec, e.topK), nil
}

// Augment appends the vocabulary tags matching the first segment of text
// content to tags. Failures are logged and the tags are returned unchanged.
func (e *Enricher) Augment(ctx context.Context, c extract.Content, tags []string) []string {
	if e == nil || c.IsImage() {
		return tags
	}
	segs := Split(c.Text(), SegmentLen)
	if len(segs) == 0 {
		return tags
	}
	hits, err := e.Search(ctx, segs[0])
	if err != nil {
		e.logger.WarnContext(ctx, "enrich failed", "error", err)
		return tags
	}
	out := slices.Clone(tags)
	for _, h := range hits {
		if h.Score < e.minScore || slices.Contains(out, h.Tag) {
			continue
		}
		out = append(out, h.Tag)
	}
	e.logger.DebugContext(ctx, "enriched tags", "hits", len(hits), "added", len(out)-len(tags))
	return out
}
