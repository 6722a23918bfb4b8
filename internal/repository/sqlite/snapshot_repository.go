package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/study"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// insertBatch bounds rows per INSERT so large snapshots stay under SQLite's
// bound-parameter limit.
const insertBatch = 200

type snapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository implementation
func NewSnapshotRepository(db *sql.DB) repository.SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Save(ctx context.Context, snap study.Snapshot) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("snapshot_repo")
	log.Debug("saving snapshot: topics=%d, flashcards=%d", len(snap.Topics), len(snap.Flashcards))

	var id int64
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		// The revision check and the insert are one statement, so a save
		// that lost a race to a newer one never lands.
		query, args, err := sqlBuilder.Insert("snapshots").
			Columns("revision", "next_topic_key", "next_flashcard_key", "staging_topic").
			Select(sqlBuilder.Select().
				Column("?", snap.Revision).
				Column("?", snap.NextTopicKey).
				Column("?", snap.NextFlashcardKey).
				Column("?", snap.StagingTopic).
				Where("? >= (SELECT COALESCE(MAX(revision), 0) FROM snapshots)", snap.Revision)).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrStaleSnapshot
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		topics := sqlBuilder.Insert("topics").Columns("snapshot_id", "topic_key", "position", "content", "tag", "enabled")
		topicQuestions := sqlBuilder.Insert("topic_questions").Columns("snapshot_id", "topic_key", "flashcard_key", "position")
		var topicRows, linkRows [][]any
		for i, t := range snap.Topics {
			topicRows = append(topicRows, []any{id, t.Key, i, t.Content, t.Tag.String(), t.Enabled})
			for j, ck := range t.QuestionRefs {
				linkRows = append(linkRows, []any{id, t.Key, ck, j})
			}
		}
		if err := insertRows(ctx, tx, topics, topicRows); err != nil {
			return fmt.Errorf("insert topics: %w", err)
		}
		if err := insertRows(ctx, tx, topicQuestions, linkRows); err != nil {
			return fmt.Errorf("insert topic questions: %w", err)
		}

		cards := sqlBuilder.Insert("flashcards").Columns("snapshot_id", "flashcard_key", "position", "question", "answer", "number")
		cardTopics := sqlBuilder.Insert("flashcard_topics").Columns("snapshot_id", "flashcard_key", "topic_key", "position")
		var cardRows [][]any
		linkRows = nil
		for i, c := range snap.Flashcards {
			cardRows = append(cardRows, []any{id, c.Key, i, c.Question, c.Answer, c.Number})
			for j, tk := range c.TopicRefs {
				linkRows = append(linkRows, []any{id, c.Key, tk, j})
			}
		}
		if err := insertRows(ctx, tx, cards, cardRows); err != nil {
			return fmt.Errorf("insert flashcards: %w", err)
		}
		if err := insertRows(ctx, tx, cardTopics, linkRows); err != nil {
			return fmt.Errorf("insert flashcard topics: %w", err)
		}
		return nil
	})
	if errors.Is(err, repository.ErrStaleSnapshot) {
		log.Debug("skipping snapshot with revision %d: a newer one is stored", snap.Revision)
		return 0, err
	}
	if err != nil {
		log.Error("failed to save snapshot: %v", err)
		return 0, err
	}
	log.Debug("snapshot saved: id=%d, revision=%d", id, snap.Revision)
	return id, nil
}

func (r *snapshotRepository) Get(ctx context.Context, id int64) (*study.Snapshot, error) {
	log := logger.FromContext(ctx).WithPrefix("snapshot_repo")
	log.Debug("loading snapshot: id=%d", id)

	query, args, err := sqlBuilder.Select("revision", "next_topic_key", "next_flashcard_key", "staging_topic").
		From("snapshots").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var snap study.Snapshot
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&snap.Revision, &snap.NextTopicKey, &snap.NextFlashcardKey, &snap.StagingTopic)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("snapshot not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to load snapshot: %v", err)
		return nil, err
	}

	if err := r.loadTopics(ctx, id, &snap); err != nil {
		log.Error("failed to load topics: %v", err)
		return nil, err
	}
	if err := r.loadFlashcards(ctx, id, &snap); err != nil {
		log.Error("failed to load flashcards: %v", err)
		return nil, err
	}
	log.Debug("snapshot loaded: topics=%d, flashcards=%d", len(snap.Topics), len(snap.Flashcards))
	return &snap, nil
}

func (r *snapshotRepository) Latest(ctx context.Context) (*study.Snapshot, error) {
	query, args, err := sqlBuilder.Select("id").From("snapshots").OrderBy("revision DESC", "id DESC").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *snapshotRepository) List(ctx context.Context, limit int) ([]models.SnapshotInfo, error) {
	log := logger.FromContext(ctx).WithPrefix("snapshot_repo")

	q := sqlBuilder.Select(
		"s.id",
		"s.revision",
		"(SELECT COUNT(*) FROM topics t WHERE t.snapshot_id = s.id)",
		"(SELECT COUNT(*) FROM flashcards f WHERE f.snapshot_id = s.id)",
		"s.created_at",
	).From("snapshots s").OrderBy("s.revision DESC", "s.id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list snapshots: %v", err)
		return nil, err
	}
	defer rows.Close()
	var out []models.SnapshotInfo
	for rows.Next() {
		var info models.SnapshotInfo
		if err := rows.Scan(&info.ID, &info.Revision, &info.Topics, &info.Flashcards, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (r *snapshotRepository) Prune(ctx context.Context, keep int) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("snapshot_repo")
	if keep < 1 {
		return 0, fmt.Errorf("prune: keep must be at least 1, got %d", keep)
	}
	query, args, err := sqlBuilder.Delete("snapshots").
		Where(squirrel.Expr("id NOT IN (SELECT id FROM snapshots ORDER BY revision DESC, id DESC LIMIT ?)", keep)).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to prune snapshots: %v", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Debug("pruned %d snapshots, kept %d", n, keep)
	}
	return n, nil
}

func (r *snapshotRepository) loadTopics(ctx context.Context, id int64, snap *study.Snapshot) error {
	refs, err := r.loadTopicQuestions(ctx, id)
	if err != nil {
		return err
	}
	query, args, err := sqlBuilder.Select("topic_key", "content", "tag", "enabled").
		From("topics").
		Where(squirrel.Eq{"snapshot_id": id}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t models.Topic
		var tag string
		if err := rows.Scan(&t.Key, &t.Content, &tag, &t.Enabled); err != nil {
			return err
		}
		if t.Tag, err = models.ParseTopicTag(tag); err != nil {
			return fmt.Errorf("topic %d: %w", t.Key, err)
		}
		t.QuestionRefs = refs[t.Key]
		snap.Topics = append(snap.Topics, t)
	}
	return rows.Err()
}

func (r *snapshotRepository) loadTopicQuestions(ctx context.Context, id int64) (map[models.TopicKey][]models.FlashcardKey, error) {
	query, args, err := sqlBuilder.Select("topic_key", "flashcard_key").
		From("topic_questions").
		Where(squirrel.Eq{"snapshot_id": id}).
		OrderBy("topic_key", "position").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := map[models.TopicKey][]models.FlashcardKey{}
	for rows.Next() {
		var tk models.TopicKey
		var ck models.FlashcardKey
		if err := rows.Scan(&tk, &ck); err != nil {
			return nil, err
		}
		refs[tk] = append(refs[tk], ck)
	}
	return refs, rows.Err()
}

func (r *snapshotRepository) loadFlashcards(ctx context.Context, id int64, snap *study.Snapshot) error {
	refs, err := r.loadFlashcardTopics(ctx, id)
	if err != nil {
		return err
	}
	query, args, err := sqlBuilder.Select("flashcard_key", "question", "answer", "number").
		From("flashcards").
		Where(squirrel.Eq{"snapshot_id": id}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Flashcard
		if err := rows.Scan(&c.Key, &c.Question, &c.Answer, &c.Number); err != nil {
			return err
		}
		c.TopicRefs = refs[c.Key]
		snap.Flashcards = append(snap.Flashcards, c)
	}
	return rows.Err()
}

func (r *snapshotRepository) loadFlashcardTopics(ctx context.Context, id int64) (map[models.FlashcardKey][]models.TopicKey, error) {
	query, args, err := sqlBuilder.Select("flashcard_key", "topic_key").
		From("flashcard_topics").
		Where(squirrel.Eq{"snapshot_id": id}).
		OrderBy("flashcard_key", "position").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := map[models.FlashcardKey][]models.TopicKey{}
	for rows.Next() {
		var ck models.FlashcardKey
		var tk models.TopicKey
		if err := rows.Scan(&ck, &tk); err != nil {
			return nil, err
		}
		refs[ck] = append(refs[ck], tk)
	}
	return refs, rows.Err()
}

func insertRows(ctx context.Context, tx *sql.Tx, base squirrel.InsertBuilder, rows [][]any) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		q := base
		for _, row := range rows[start:end] {
			q = q.Values(row...)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}
