package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"docreview/cmd/review-service/internal/biz"
)

// MilvusEmbeddingStore 从Milvus拉取文档向量，供聚类使用。
// 向量由上游索引服务写入，这里只读。
type MilvusEmbeddingStore struct {
	milvus     client.Client
	collection string
	log        *log.Helper
}

// NewMilvusEmbeddingStore 创建向量存储
func NewMilvusEmbeddingStore(milvus client.Client, collectionName string, logger log.Logger) *MilvusEmbeddingStore {
	return &MilvusEmbeddingStore{
		milvus:     milvus,
		collection: collectionName,
		log:        log.NewHelper(log.With(logger, "module", "embedding-store")),
	}
}

// FetchEmbeddings 按来源拉取文档向量
func (s *MilvusEmbeddingStore) FetchEmbeddings(ctx context.Context, bases []string) ([]biz.Embedding, error) {
	if len(bases) == 0 {
		return nil, nil
	}

	expr := fmt.Sprintf("base in [%s]", quoteList(bases))
	results, err := s.milvus.Query(ctx, s.collection, nil, expr, []string{"main_id", "embedding"})
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}

	var mainIDs []string
	var vectors [][]float32
	for _, column := range results {
		switch col := column.(type) {
		case *entity.ColumnVarChar:
			if col.Name() == "main_id" {
				mainIDs = col.Data()
			}
		case *entity.ColumnFloatVector:
			if col.Name() == "embedding" {
				vectors = col.Data()
			}
		}
	}
	if len(mainIDs) != len(vectors) {
		return nil, fmt.Errorf("embedding column mismatch: %d ids, %d vectors", len(mainIDs), len(vectors))
	}

	// 同一文档可能被多个来源索引，按MainID去重，保留先见的
	seen := make(map[string]bool, len(mainIDs))
	embeddings := make([]biz.Embedding, 0, len(mainIDs))
	for i, id := range mainIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		embeddings = append(embeddings, biz.Embedding{MainID: id, Vector: vectors[i]})
	}

	s.log.Debugf("fetched %d embeddings for %d bases", len(embeddings), len(bases))
	return embeddings, nil
}

// quoteList 将字符串列表转为表达式里的带引号列表
func quoteList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		b, _ := json.Marshal(v)
		quoted = append(quoted, string(b))
	}
	return strings.Join(quoted, ", ")
}
