package semantic

import (
	"context"
	"fmt"
	"sync"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Payload keys written with every point.
const (
	payloadRecordID = "record_id"
	payloadText     = "text"
	payloadChunkID  = "chunk_id"
	payloadStart    = "start_sentence"
	payloadEnd      = "end_sentence"
	payloadNum      = "num_sentences"
)

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Qdrant is a Store backed by a Qdrant collection with cosine distance. The
// collection is created on first Add, sized to the first vector.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string

	mu  sync.Mutex
	dim int // 0 until the collection is known to exist
}

// NewQdrant connects to Qdrant at the given gRPC address.
func NewQdrant(addr, collection string) (*Qdrant, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, domain.StoreError("connect", fmt.Errorf("dial qdrant %s: %w", addr, err))
	}
	q := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	q.conn = conn
	return q, nil
}

// NewWithClients builds a store over existing clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Qdrant {
	return &Qdrant{points: points, collections: collections, collection: collection}
}

func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// pointID maps a record id to the UUID Qdrant requires.
func (q *Qdrant) pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docrag:"+q.collection+"/"+recordID)).String()
}

// lookup reports the vector size of the collection, 0 if it does not exist.
// Must hold mu.
func (q *Qdrant) lookup(ctx context.Context) (int, error) {
	if q.dim > 0 {
		return q.dim, nil
	}
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return 0, fmt.Errorf("list collections: %w", err)
	}
	found := false
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			found = true
			break
		}
	}
	if !found {
		return 0, nil
	}
	info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collection})
	if err != nil {
		return 0, fmt.Errorf("get collection %s: %w", q.collection, err)
	}
	q.dim = int(info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	return q.dim, nil
}

// ensure creates the collection when missing. Must hold mu.
func (q *Qdrant) ensure(ctx context.Context, dim int) error {
	have, err := q.lookup(ctx)
	if err != nil {
		return err
	}
	if have != 0 {
		if have != dim {
			return mismatch(have, dim)
		}
		return nil
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	q.dim = dim
	return nil
}

func (q *Qdrant) Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32) error {
	records, dim, err := prepare(chunks, embeddings)
	if err != nil || len(records) == 0 {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ensure(ctx, dim); err != nil {
		return domain.StoreError("add", err)
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: q.pointID(r.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				payloadRecordID: strValue(r.ID),
				payloadText:     strValue(r.Text),
				payloadChunkID:  intValue(r.ChunkID),
				payloadStart:    intValue(r.StartSentence),
				payloadEnd:      intValue(r.EndSentence),
				payloadNum:      intValue(r.NumSentences),
			},
		}
	}

	wait := true
	_, err = q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return domain.StoreError("add", fmt.Errorf("upsert %d points: %w", len(points), err))
	}
	return nil
}

// Search relies on Qdrant's cosine score, which already equals 1 - cosine distance.
func (q *Qdrant) Search(ctx context.Context, query []float32, k int) (domain.RetrievalResult, error) {
	if k <= 0 {
		return domain.RetrievalResult{}, nil
	}
	q.mu.Lock()
	dim, err := q.lookup(ctx)
	q.mu.Unlock()
	if err != nil {
		return nil, domain.StoreError("search", err)
	}
	if dim == 0 {
		return domain.RetrievalResult{}, nil
	}
	if len(query) != dim {
		return nil, domain.StoreError("search", mismatch(dim, len(query)))
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, domain.StoreError("search", err)
	}

	hits := make(domain.RetrievalResult, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		pl := p.GetPayload()
		c := domain.Chunk{
			Text:          pl[payloadText].GetStringValue(),
			ChunkID:       int(pl[payloadChunkID].GetIntegerValue()),
			StartSentence: int(pl[payloadStart].GetIntegerValue()),
			EndSentence:   int(pl[payloadEnd].GetIntegerValue()),
			NumSentences:  int(pl[payloadNum].GetIntegerValue()),
		}
		id := pl[payloadRecordID].GetStringValue()
		if id == "" {
			id = c.ID()
		}
		hits = append(hits, domain.Hit{
			Record:     domain.Record{ID: id, Chunk: c},
			Similarity: p.GetScore(),
		})
	}
	return hits, nil
}

func (q *Qdrant) Count(ctx context.Context) (int, error) {
	q.mu.Lock()
	dim, err := q.lookup(ctx)
	q.mu.Unlock()
	if err != nil {
		return 0, domain.StoreError("count", err)
	}
	if dim == 0 {
		return 0, nil
	}
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{CollectionName: q.collection, Exact: &exact})
	if err != nil {
		return 0, domain.StoreError("count", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Reset drops the collection. The next Add recreates it.
func (q *Qdrant) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	dim, err := q.lookup(ctx)
	if err != nil {
		return domain.StoreError("reset", err)
	}
	if dim == 0 {
		return nil
	}
	if _, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection}); err != nil {
		return domain.StoreError("reset", fmt.Errorf("delete collection %s: %w", q.collection, err))
	}
	q.dim = 0
	return nil
}

func strValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}
