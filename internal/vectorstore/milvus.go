package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"drivemind/internal/database/milvus"
	"drivemind/internal/embedding"
	"drivemind/internal/models"
	"drivemind/pkg/logger"
)

const (
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldDocument  = "document"
	fieldDocType   = "doc_type"
	fieldFileName  = "file_name"
	fieldMetadata  = "metadata"

	docTypeChunk    = "chunk"
	docTypeManifest = "manifest"

	upsertBatchSize = 100
)

// MilvusStore implements Store on top of a Milvus deployment, one
// collection per folder.
type MilvusStore struct {
	client   *milvus.Client
	embedder embedding.Embedder
	dim      int
	log      *logger.Logger
}

var _ Store = (*MilvusStore)(nil)

func NewMilvusStore(client *milvus.Client, embedder embedding.Embedder) *MilvusStore {
	return &MilvusStore{
		client:   client,
		embedder: embedder,
		dim:      client.Config.EmbeddingDim,
		log:      logger.New("vectorstore"),
	}
}

// ensureCollection creates and loads the folder's collection on first use.
func (s *MilvusStore) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.client.Client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim))).
			WithField(entity.NewField().WithName(fieldDocument).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName(fieldDocType).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(fieldFileName).WithDataType(entity.FieldTypeVarChar).WithMaxLength(2048)).
			WithField(entity.NewField().WithName(fieldMetadata).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535))

		if err := s.client.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}

		idx, err := entity.NewIndexIvfFlat(entity.L2, 128)
		if err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
		if err := s.client.Client.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
	}

	if err := s.client.Client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}

func (s *MilvusStore) Upsert(ctx context.Context, userID, folderID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	name := CollectionName(userID, folderID)
	if err := s.ensureCollection(ctx, name); err != nil {
		return err
	}

	for start := 0; start < len(docs); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}

		ids := make([]string, len(batch))
		contents := make([]string, len(batch))
		docTypes := make([]string, len(batch))
		fileNames := make([]string, len(batch))
		metadatas := make([]string, len(batch))
		for i, d := range batch {
			ids[i] = d.ID
			contents[i] = d.Content
			docTypes[i] = docTypeChunk
			fileNames[i] = d.Metadata.FileName
			meta, err := json.Marshal(d.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", d.ID, err)
			}
			metadatas[i] = string(meta)
		}

		_, err = s.client.Client.Upsert(ctx, name, "",
			entity.NewColumnVarChar(fieldID, ids),
			entity.NewColumnFloatVector(fieldEmbedding, s.dim, vectors),
			entity.NewColumnVarChar(fieldDocument, contents),
			entity.NewColumnVarChar(fieldDocType, docTypes),
			entity.NewColumnVarChar(fieldFileName, fileNames),
			entity.NewColumnVarChar(fieldMetadata, metadatas),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert into %s: %w", name, err)
		}
	}

	s.log.WithFolder(folderID).Info(fmt.Sprintf("upserted %d chunks into %s", len(docs), name))
	return nil
}

func (s *MilvusStore) Search(ctx context.Context, userID, folderID, query string, topK int, fileName string) ([]SearchHit, error) {
	name := CollectionName(userID, folderID)
	if err := s.ensureCollection(ctx, name); err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	expr := fmt.Sprintf(`%s != "%s"`, fieldDocType, docTypeManifest)
	if fileName != "" {
		expr += fmt.Sprintf(` and %s == "%s"`, fieldFileName, escapeExpr(fileName))
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(10)
	results, err := s.client.Client.Search(
		ctx, name, []string{}, expr,
		[]string{fieldDocument, fieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding, entity.L2, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}

	var hits []SearchHit
	for _, res := range results {
		docCol, ok := findColumn(res.Fields, fieldDocument).(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("search result is missing the document field, skipping")
			continue
		}
		metaCol, _ := findColumn(res.Fields, fieldMetadata).(*entity.ColumnVarChar)

		for i := 0; i < res.ResultCount; i++ {
			hit := SearchHit{
				Content:  docCol.Data()[i],
				Distance: res.Scores[i],
			}
			if metaCol != nil {
				if err := json.Unmarshal([]byte(metaCol.Data()[i]), &hit.Metadata); err != nil {
					s.log.WithErr(err).Warn("failed to decode chunk metadata")
				}
			}
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

func (s *MilvusStore) StoreFileManifest(ctx context.Context, userID, folderID string, files []models.FileDescriptor) error {
	name := CollectionName(userID, folderID)
	if err := s.ensureCollection(ctx, name); err != nil {
		return err
	}

	summary := ManifestSummary(files)
	vector, err := s.embedder.EmbedQuery(ctx, summary)
	if err != nil {
		return fmt.Errorf("failed to embed manifest summary: %w", err)
	}
	manifestJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	_, err = s.client.Client.Upsert(ctx, name, "",
		entity.NewColumnVarChar(fieldID, []string{manifestID(folderID)}),
		entity.NewColumnFloatVector(fieldEmbedding, s.dim, [][]float32{vector}),
		entity.NewColumnVarChar(fieldDocument, []string{summary}),
		entity.NewColumnVarChar(fieldDocType, []string{docTypeManifest}),
		entity.NewColumnVarChar(fieldFileName, []string{""}),
		entity.NewColumnVarChar(fieldMetadata, []string{string(manifestJSON)}),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert manifest into %s: %w", name, err)
	}
	return nil
}

// GetFileManifest never fails: any read problem, a missing collection
// included, yields an empty listing so callers degrade instead of erroring.
func (s *MilvusStore) GetFileManifest(ctx context.Context, userID, folderID string) ([]models.FileDescriptor, error) {
	name := CollectionName(userID, folderID)
	exists, err := s.client.Client.HasCollection(ctx, name)
	if err != nil {
		s.log.WithFolder(folderID).WithErr(err).Warn(fmt.Sprintf("failed to check collection %s, returning empty manifest", name))
		return []models.FileDescriptor{}, nil
	}
	if !exists {
		return []models.FileDescriptor{}, nil
	}
	if err := s.client.Client.LoadCollection(ctx, name, false); err != nil {
		s.log.WithFolder(folderID).WithErr(err).Warn(fmt.Sprintf("failed to load collection %s, returning empty manifest", name))
		return []models.FileDescriptor{}, nil
	}

	expr := fmt.Sprintf(`%s == "%s"`, fieldID, manifestID(folderID))
	resultSet, err := s.client.Client.Query(ctx, name, []string{}, expr, []string{fieldMetadata})
	if err != nil {
		s.log.WithFolder(folderID).WithErr(err).Warn(fmt.Sprintf("failed to query manifest in %s, returning empty manifest", name))
		return []models.FileDescriptor{}, nil
	}

	files, err := decodeManifest(resultSet)
	if err != nil {
		s.log.WithFolder(folderID).WithErr(err).Warn("failed to decode manifest, returning empty manifest")
		return []models.FileDescriptor{}, nil
	}
	return files, nil
}

// decodeManifest pulls the file listing out of a manifest query result. A
// missing or empty metadata column is an empty listing, not an error.
func decodeManifest(columns []entity.Column) ([]models.FileDescriptor, error) {
	metaCol, ok := findColumn(columns, fieldMetadata).(*entity.ColumnVarChar)
	if !ok || metaCol.Len() == 0 {
		return []models.FileDescriptor{}, nil
	}

	var files []models.FileDescriptor
	if err := json.Unmarshal([]byte(metaCol.Data()[0]), &files); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return files, nil
}

func (s *MilvusStore) DropCollection(ctx context.Context, userID, folderID string) error {
	name := CollectionName(userID, folderID)
	exists, err := s.client.Client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.Client.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	s.log.WithFolder(folderID).Info(fmt.Sprintf("dropped collection %s", name))
	return nil
}

func findColumn(fields []entity.Column, name string) entity.Column {
	for _, field := range fields {
		if field.Name() == name {
			return field
		}
	}
	return nil
}

func escapeExpr(value string) string {
	return strings.ReplaceAll(value, `"`, `\"`)
}
