package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	bodyField     = "body"
	revisionField = "rev"
	// DefaultChannelPrefix redis channel prefix of document changes
	DefaultChannelPrefix = "doc:"
)

// documentChange published after every committed write
type documentChange struct {
	Path     string      `json:"path"`
	Value    interface{} `json:"value"`
	Revision int64       `json:"rev"`
}

type storedDocument struct {
	Revision int64       `json:"rev"`
	Body     interface{} `json:"body"`
}

// MongoStore DocumentStore kept in one mongo collection, one mongo document per
// top-level path segment: {_id, rev, body}. Changes fan out through a ChangeFeed.
type MongoStore struct {
	coll          *mongo.Collection
	feed          ChangeFeed
	channelPrefix string
}

// NewMongoStore create a MongoStore on collection, changes published on feed
func NewMongoStore(db *mongo.Database, collection string, feed ChangeFeed) *MongoStore {
	return &MongoStore{
		coll:          db.Collection(collection),
		feed:          feed,
		channelPrefix: DefaultChannelPrefix,
	}
}

func (s *MongoStore) channel(top string) string {
	return s.channelPrefix + top
}

func fieldPath(rest []string) string {
	if len(rest) == 0 {
		return bodyField
	}
	return bodyField + "." + strings.Join(rest, ".")
}

// load the whole top-level document, found false when it does not exist
func (s *MongoStore) load(ctx context.Context, top string) (storedDocument, bool, error) {
	var raw bson.Raw
	err := s.coll.FindOne(ctx, bson.M{"_id": top}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storedDocument{}, false, nil
	}
	if err != nil {
		return storedDocument{}, false, err
	}

	// relaxed extended JSON keeps numbers as plain JSON numbers
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return storedDocument{}, false, err
	}
	var doc storedDocument
	if err := json.Unmarshal(ext, &doc); err != nil {
		return storedDocument{}, false, err
	}
	return doc, true, nil
}

// Read value at path
func (s *MongoStore) Read(ctx context.Context, path string) (Document, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}

	doc, found, err := s.load(ctx, segs[0])
	if err != nil {
		return Document{}, &domain.StoreError{Op: "read", Path: path, Err: err}
	}
	if !found {
		return Document{}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}

	v, ok := getIn(doc.Body, segs[1:])
	if !ok {
		return Document{Revision: doc.Revision}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return Document{Value: v, Revision: doc.Revision}, nil
}

// Write overwrite the value at path and publish the change
func (s *MongoStore) Write(ctx context.Context, path string, value interface{}, opts ...WriteOption) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	o := collectWriteOptions(opts)
	top, rest := segs[0], segs[1:]

	value = prune(deepCopy(value))

	update := bson.M{"$inc": bson.M{revisionField: int64(1)}}
	switch {
	case value != nil:
		update["$set"] = bson.M{fieldPath(rest): value}
	case len(rest) == 0:
		update["$set"] = bson.M{bodyField: bson.M{}}
	default:
		update["$unset"] = bson.M{fieldPath(rest): ""}
	}

	filter := bson.M{"_id": top}
	upsert := true
	if o.checkRevision {
		if o.revision == 0 {
			// 只允許新建, 已存在時 upsert 撞 _id
			filter[revisionField] = bson.M{"$exists": false}
		} else {
			filter[revisionField] = o.revision
			upsert = false
		}
	}

	res := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().
			SetUpsert(upsert).
			SetReturnDocument(options.After).
			SetProjection(bson.M{revisionField: 1}))

	var after struct {
		Revision int64 `bson:"rev"`
	}
	if err := res.Decode(&after); err != nil {
		if o.checkRevision && (errors.Is(err, mongo.ErrNoDocuments) || mongo.IsDuplicateKeyError(err)) {
			return fmt.Errorf("%s: %w (want %d)", path, domain.ErrRevisionConflict, o.revision)
		}
		return &domain.StoreError{Op: "write", Path: path, Err: err}
	}

	if s.feed != nil {
		change := documentChange{Path: joinPath(segs), Value: value, Revision: after.Revision}
		if err := s.feed.Publish(ctx, s.channel(top), change); err != nil {
			// 已寫入, observer 下次收到變更時以 revision 缺口重新讀取
			logger.Log.Error("publish document change", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

// mongoObserver local replica of one top-level document for one subscription
type mongoObserver struct {
	mu       sync.Mutex
	store    *MongoStore
	ctx      context.Context
	segs     []string
	body     interface{}
	revision int64
	last     interface{}
	box      *mailbox
}

// Observe current state of path, then every change to it
func (s *MongoStore) Observe(ctx context.Context, path string) (<-chan Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if s.feed == nil {
		return nil, errors.New("mongo store has no change feed")
	}

	obs := &mongoObserver{store: s, ctx: ctx, segs: segs, box: newMailbox()}

	// 先訂閱再讀取, 讀取期間的變更由 revision 過濾
	obs.mu.Lock()
	defer obs.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	if err := s.feed.Subscribe(subCtx, s.channel(segs[0]), obs.onChange); err != nil {
		cancel()
		return nil, &domain.StoreError{Op: "observe", Path: path, Err: err}
	}
	if err := obs.resync(); err != nil {
		cancel()
		return nil, &domain.StoreError{Op: "observe", Path: path, Err: err}
	}
	obs.emit(true)

	out := make(chan Snapshot)
	go func() {
		defer cancel()
		obs.box.pump(ctx, out)
	}()
	return out, nil
}

// resync reload the document, caller holds mu
func (o *mongoObserver) resync() error {
	doc, found, err := o.store.load(o.ctx, o.segs[0])
	if err != nil {
		return err
	}
	if !found {
		o.body, o.revision = nil, 0
		return nil
	}
	o.body, o.revision = doc.Body, doc.Revision
	return nil
}

// emit push the current value if it changed, caller holds mu
func (o *mongoObserver) emit(force bool) {
	v, exists := getIn(o.body, o.segs[1:])
	if !force && sameValue(v, o.last) {
		return
	}
	o.last = v
	o.box.push(Snapshot{
		Path:     joinPath(o.segs),
		Value:    deepCopy(v),
		Exists:   exists,
		Revision: o.revision,
	})
}

func (o *mongoObserver) onChange(payload []byte) {
	var change documentChange
	if err := json.Unmarshal(payload, &change); err != nil {
		logger.Log.Error("decode document change", zap.Error(err))
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case change.Revision <= o.revision:
		// 初始讀取已包含
		return
	case change.Revision == o.revision+1:
		segs, err := splitPath(change.Path)
		if err != nil {
			return
		}
		o.body = setIn(o.body, segs[1:], change.Value)
		o.revision = change.Revision
	default:
		if err := o.resync(); err != nil {
			logger.Log.Error("resync observed document", zap.String("path", joinPath(o.segs)), zap.Error(err))
			return
		}
	}

	o.emit(false)
}
