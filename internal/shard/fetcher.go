package shard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/enrich"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/storage"
)

// envelope is the layout of an ordinary or range shard object.
type envelope struct {
	Laws map[string]*models.Law `json:"laws"`
}

// articlePayload is the layout of a per-article object. Other objects hold
// a {"laws": …} envelope or the bare article without law metadata.
type articlePayload struct {
	LawID    string          `json:"law_id"`
	LawNum   string          `json:"law_num"`
	LawTitle string          `json:"law_title"`
	Article  *models.Article `json:"article"`
}

// Library is the set of laws and articles fetched for one request.
type Library struct {
	laws map[string]*models.Law
}

func newLibrary() *Library {
	return &Library{laws: make(map[string]*models.Law)}
}

// Law returns the fetched law record for lawID.
func (l *Library) Law(lawID string) (*models.Law, bool) {
	law, ok := l.laws[lawID]
	return law, ok
}

// Article returns the law and article for key.
func (l *Library) Article(key models.ArticleKey) (*models.Law, *models.Article, bool) {
	law, ok := l.laws[key.LawID]
	if !ok {
		return nil, nil, false
	}
	article, ok := law.FindArticle(key.ArticleTitle)
	if !ok {
		return law, nil, false
	}
	return law, article, true
}

// Len returns the number of laws in the library.
func (l *Library) Len() int {
	return len(l.laws)
}

func (l *Library) mergeLaw(law *models.Law) {
	existing, ok := l.laws[law.LawID]
	if !ok {
		l.laws[law.LawID] = law
		return
	}
	existing.MergeArticles(law.Articles)
	if existing.LawTitle == "" {
		existing.LawTitle = law.LawTitle
		existing.LawNum = law.LawNum
	}
}

// Fetcher retrieves article bodies from object storage.
type Fetcher struct {
	store   storage.ObjectStore
	locator *Locator
	logger  *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger sets a logger for skipped laws and swallowed failures.
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a fetcher over store.
func NewFetcher(store storage.ObjectStore, locator *Locator, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{store: store, locator: locator, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ChunkMap loads the law chunk map. A missing map yields an empty one, leaving
// only range-sharded laws resolvable.
func (f *Fetcher) ChunkMap(ctx context.Context) (ChunkMap, error) {
	key := f.locator.layout.ChunkMapKey
	data, err := f.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		f.logger.Warn("chunk map not found", zap.String("key", key))
		return ChunkMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk map: %w", err)
	}
	return ParseChunkMap(data)
}

// Fetch loads the articles named by keys. Distinct objects are fetched in
// parallel. Laws with no strategy are skipped; per-article fetch failures are
// logged and skipped. Shard I/O failures other than not-found are returned.
func (f *Fetcher) Fetch(ctx context.Context, keys []models.ArticleKey) (*Library, error) {
	lib := newLibrary()
	if len(keys) == 0 {
		return lib, nil
	}
	cm, err := f.ChunkMap(ctx)
	if err != nil {
		return nil, err
	}
	plan := f.locator.Plan(cm, keys)
	for _, lawID := range plan.Unresolved {
		f.logger.Debug("law not present in chunk map", zap.String("law_id", lawID))
	}
	for _, k := range plan.Unplaced {
		f.logger.Debug("article outside shard ranges", zap.String("key", k.String()))
	}

	type fetched struct {
		laws    map[string]*models.Law
		article *articlePayload
	}
	var (
		results = make([]fetched, len(plan.Objects))
		errChan = make(chan error, len(plan.Objects))
		wg      sync.WaitGroup
	)
	for i, obj := range plan.Objects {
		wg.Add(1)
		go func(i int, obj Object) {
			defer wg.Done()
			switch obj.Kind {
			case ShardObject:
				laws, err := f.LoadShard(ctx, obj.Key)
				if err != nil {
					errChan <- err
					return
				}
				results[i].laws = laws
			case ArticleObject:
				results[i].article = enrich.OrElse(f.logger, "shard.article_fetch",
					enrich.Attempt(func() (*articlePayload, error) { return f.loadArticle(ctx, obj) }), nil)
			}
		}(i, obj)
	}
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	for i, obj := range plan.Objects {
		r := results[i]
		switch obj.Kind {
		case ShardObject:
			ids := make([]string, 0, len(r.laws))
			for id := range r.laws {
				if _, ok := plan.Wanted[id]; ok {
					ids = append(ids, id)
				}
			}
			sort.Strings(ids)
			for _, id := range ids {
				law := r.laws[id]
				if law.LawID == "" {
					law.LawID = id
				}
				lib.mergeLaw(law)
			}
		case ArticleObject:
			if r.article == nil || r.article.Article == nil {
				continue
			}
			lib.mergeLaw(&models.Law{
				LawID:    obj.LawID,
				LawNum:   r.article.LawNum,
				LawTitle: r.article.LawTitle,
				Articles: []models.Article{*r.article.Article},
			})
		}
	}
	return lib, nil
}

// LoadShard fetches and decodes one shard object. A missing object yields nil.
func (f *Fetcher) LoadShard(ctx context.Context, key string) (map[string]*models.Law, error) {
	data, err := f.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		f.logger.Debug("shard not found", zap.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shard %s: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse shard %s: %w", key, err)
	}
	return env.Laws, nil
}

func (f *Fetcher) loadArticle(ctx context.Context, obj Object) (*articlePayload, error) {
	data, err := f.store.Get(ctx, obj.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article %s: %w", obj.Key, err)
	}
	var payload articlePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse article %s: %w", obj.Key, err)
	}
	if payload.Article != nil {
		return &payload, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse article %s: %w", obj.Key, err)
	}
	if law := env.Laws[obj.LawID]; law != nil {
		article, ok := law.FindArticle(obj.Title)
		if !ok {
			return nil, fmt.Errorf("article object %s does not hold %s", obj.Key, obj.Title)
		}
		return &articlePayload{LawID: obj.LawID, LawNum: law.LawNum, LawTitle: law.LawTitle, Article: article}, nil
	}
	var bare models.Article
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("failed to parse article %s: %w", obj.Key, err)
	}
	if bare.Title == "" {
		return nil, fmt.Errorf("article object %s has no title", obj.Key)
	}
	payload.Article = &bare
	return &payload, nil
}
