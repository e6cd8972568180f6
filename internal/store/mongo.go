// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

const (
	defaultDatabase = "academic_language"

	papersColl    = "papers"
	snapshotsColl = "snapshots"
	featuresColl  = "extracted_features"
	runsColl      = "ingest_runs"
)

// MongoStore is the shared document-store backend. Record shapes match the
// original collection schemas, so it can point at an existing database.
type MongoStore struct {
	client    *mongo.Client
	papers    *mongo.Collection
	snapshots *mongo.Collection
	features  *mongo.Collection
	runs      *mongo.Collection
}

// OpenMongo connects, pings, and ensures the indexes the pipeline relies on.
func OpenMongo(ctx context.Context, cfg types.StoreConfig) (*MongoStore, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("%w: mongo URI not set", types.ErrConfiguration)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = defaultDatabase
	}
	db := client.Database(dbName)

	s := &MongoStore{
		client:    client,
		papers:    db.Collection(papersColl),
		snapshots: db.Collection(snapshotsColl),
		features:  db.Collection(featuresColl),
		runs:      db.Collection(runsColl),
	}
	if err := s.createIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.papers.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "processing_status", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = s.features.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "paper_id", Value: 1}, {Key: "script_version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = s.snapshots.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "paper_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// UpsertPaper replaces the full document keyed by _id.
func (s *MongoStore) UpsertPaper(ctx context.Context, p *types.Paper) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.papers.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	if err != nil {
		return fmt.Errorf("%w: upserting paper %s: %v", types.ErrStoreWrite, p.ID, err)
	}
	return nil
}

// FindPaper returns the paper with the given ID, or nil when absent.
func (s *MongoStore) FindPaper(ctx context.Context, id string) (*types.Paper, error) {
	var p types.Paper
	err := s.papers.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding paper %s: %w", id, err)
	}
	return &p, nil
}

func (s *MongoStore) findPapers(ctx context.Context, filter bson.M, limit int) ([]types.Paper, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.papers.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var papers []types.Paper
	if err := cursor.All(ctx, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

// QueryByStatus returns papers in the given status, in identifier order.
func (s *MongoStore) QueryByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]types.Paper, error) {
	papers, err := s.findPapers(ctx, bson.M{"processing_status": string(status)}, limit)
	if err != nil {
		return nil, fmt.Errorf("querying by status %s: %w", status, err)
	}
	return papers, nil
}

// TransitionStatus performs the compare-and-set status update: the filter
// matches on the expected current status, so a concurrent change loses.
func (s *MongoStore) TransitionStatus(ctx context.Context, id string, from, to types.ProcessingStatus, reason, localPath string) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}

	set := bson.M{"processing_status": string(to)}
	if reason != "" {
		set["failure_reason"] = reason
	}
	if localPath != "" {
		set["content.local_path"] = localPath
	}

	res, err := s.papers.UpdateOne(ctx,
		bson.M{"_id": id, "processing_status": string(from)},
		bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("%w: transitioning %s: %v", types.ErrStoreWrite, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: paper %s is not in status %s", ErrInvalidTransition, id, from)
	}
	return nil
}

// featurePaperIDs returns the set of paper IDs having a feature record,
// optionally restricted to one script version.
func (s *MongoStore) featurePaperIDs(ctx context.Context, version string) (map[string]bool, error) {
	filter := bson.M{}
	if version != "" {
		filter["script_version"] = version
	}
	ids, err := s.features.Distinct(ctx, "paper_id", filter)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if str, ok := id.(string); ok {
			set[str] = true
		}
	}
	return set, nil
}

// PapersForExtraction selects extraction-eligible papers at a script version.
func (s *MongoStore) PapersForExtraction(ctx context.Context, version string, limit int, reprocess bool) ([]types.Paper, error) {
	excludeVersion := ""
	if reprocess {
		excludeVersion = version
	}
	processed, err := s.featurePaperIDs(ctx, excludeVersion)
	if err != nil {
		return nil, fmt.Errorf("listing processed papers: %w", err)
	}

	candidates, err := s.findPapers(ctx, bson.M{"content.abstract": bson.M{"$ne": ""}}, 0)
	if err != nil {
		return nil, fmt.Errorf("selecting papers for extraction: %w", err)
	}

	var papers []types.Paper
	for _, p := range candidates {
		if processed[p.ID] {
			continue
		}
		papers = append(papers, p)
		if limit > 0 && len(papers) >= limit {
			break
		}
	}
	return papers, nil
}

// PapersForScoring selects papers with abstracts that lack a jargon score.
func (s *MongoStore) PapersForScoring(ctx context.Context, limit int) ([]types.Paper, error) {
	filter := bson.M{
		"content.abstract": bson.M{"$ne": ""},
		"jargon":           bson.M{"$exists": false},
	}
	papers, err := s.findPapers(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting papers for scoring: %w", err)
	}
	return papers, nil
}

// ScoredPapers returns papers carrying a jargon score.
func (s *MongoStore) ScoredPapers(ctx context.Context) ([]types.Paper, error) {
	papers, err := s.findPapers(ctx, bson.M{"jargon": bson.M{"$exists": true}}, 0)
	if err != nil {
		return nil, fmt.Errorf("selecting scored papers: %w", err)
	}
	return papers, nil
}

// SetJargon writes a jargon score onto an existing paper.
func (s *MongoStore) SetJargon(ctx context.Context, paperID string, score types.JargonScore) error {
	res, err := s.papers.UpdateOne(ctx,
		bson.M{"_id": paperID},
		bson.M{"$set": bson.M{"jargon": score}})
	if err != nil {
		return fmt.Errorf("%w: setting jargon for %s: %v", types.ErrStoreWrite, paperID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("setting jargon: %w: %s", ErrNotFound, paperID)
	}
	return nil
}

// UpsertFeatures replaces the record keyed by (paper, version).
func (s *MongoStore) UpsertFeatures(ctx context.Context, rec *types.FeatureRecord) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"paper_id": rec.PaperID, "script_version": rec.ScriptVersion}
	_, err := s.features.ReplaceOne(ctx, filter, rec, opts)
	if err != nil {
		return fmt.Errorf("%w: upserting features for %s@%s: %v",
			types.ErrStoreWrite, rec.PaperID, rec.ScriptVersion, err)
	}
	return nil
}

// HasFeatures reports whether a feature record exists for the pair.
func (s *MongoStore) HasFeatures(ctx context.Context, paperID, version string) (bool, error) {
	filter := bson.M{"paper_id": paperID}
	if version != "" {
		filter["script_version"] = version
	}
	n, err := s.features.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("checking features for %s: %w", paperID, err)
	}
	return n > 0, nil
}

// FindFeatures returns the feature record for the pair, or nil.
func (s *MongoStore) FindFeatures(ctx context.Context, paperID, version string) (*types.FeatureRecord, error) {
	var rec types.FeatureRecord
	err := s.features.FindOne(ctx,
		bson.M{"paper_id": paperID, "script_version": version}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding features for %s@%s: %w", paperID, version, err)
	}
	return &rec, nil
}

// AppendSnapshot appends one citation observation, enforcing date order.
// Single-writer model: the read-then-push pair is not guarded.
func (s *MongoStore) AppendSnapshot(ctx context.Context, paperID string, obs types.Observation) error {
	existing, err := s.FindSnapshot(ctx, paperID)
	if err != nil {
		return err
	}
	if existing != nil && len(existing.Observations) > 0 {
		last := existing.Observations[len(existing.Observations)-1]
		if obs.Date.Before(last.Date) {
			return fmt.Errorf("%w: snapshot date %s precedes last observation %s",
				types.ErrValidation, obs.Date.Format(time.RFC3339), last.Date.Format(time.RFC3339))
		}
	}

	opts := options.Update().SetUpsert(true)
	_, err = s.snapshots.UpdateOne(ctx,
		bson.M{"paper_id": paperID},
		bson.M{"$push": bson.M{"observations": obs}},
		opts)
	if err != nil {
		return fmt.Errorf("%w: appending snapshot for %s: %v", types.ErrStoreWrite, paperID, err)
	}
	return nil
}

// FindSnapshot returns the citation history for a paper, or nil.
func (s *MongoStore) FindSnapshot(ctx context.Context, paperID string) (*types.Snapshot, error) {
	var snap types.Snapshot
	err := s.snapshots.FindOne(ctx, bson.M{"paper_id": paperID}).Decode(&snap)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshots for %s: %w", paperID, err)
	}
	return &snap, nil
}

// RecordIngestRun saves the audit record for one ingestion pass.
func (s *MongoStore) RecordIngestRun(ctx context.Context, run types.IngestRun) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.runs.ReplaceOne(ctx, bson.M{"_id": run.ID}, run, opts)
	if err != nil {
		return fmt.Errorf("%w: recording ingest run: %v", types.ErrStoreWrite, err)
	}
	return nil
}

// AllPapers returns every paper record in identifier order.
func (s *MongoStore) AllPapers(ctx context.Context) ([]types.Paper, error) {
	return s.findPapers(ctx, bson.M{}, 0)
}

// Counts summarizes the store contents.
func (s *MongoStore) Counts(ctx context.Context) (Counts, error) {
	c := Counts{ByStatus: make(map[types.ProcessingStatus]int)}

	total, err := s.papers.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Counts{}, fmt.Errorf("counting papers: %w", err)
	}
	c.Papers = int(total)

	withAbstract, err := s.papers.CountDocuments(ctx, bson.M{"content.abstract": bson.M{"$ne": ""}})
	if err != nil {
		return Counts{}, fmt.Errorf("counting papers with abstracts: %w", err)
	}
	c.WithAbstract = int(withAbstract)

	scored, err := s.papers.CountDocuments(ctx, bson.M{"jargon": bson.M{"$exists": true}})
	if err != nil {
		return Counts{}, fmt.Errorf("counting scored papers: %w", err)
	}
	c.JargonScored = int(scored)

	features, err := s.features.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Counts{}, fmt.Errorf("counting features: %w", err)
	}
	c.Features = int(features)

	snapshots, err := s.snapshots.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Counts{}, fmt.Errorf("counting snapshots: %w", err)
	}
	c.Snapshots = int(snapshots)

	for _, status := range types.AllStatuses {
		n, err := s.papers.CountDocuments(ctx, bson.M{"processing_status": string(status)})
		if err != nil {
			return Counts{}, fmt.Errorf("counting status %s: %w", status, err)
		}
		if n > 0 {
			c.ByStatus[status] = int(n)
		}
	}
	return c, nil
}
