package graph

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/xreach/acp/pkg/models"
)

func testCategories() []models.AssetCategory {
	return []models.AssetCategory{
		{Name: "servers", Items: []models.Device{
			{ID: "1", Name: "API Server", Status: "running"},
			{ID: "2", Name: "Database Server", Status: "stopped"},
		}},
		{Name: "atms", Items: []models.Device{
			{ID: "1", Name: "ATM #101", Status: "online", Provider: "onprem", Region: "zagreb"},
		}},
	}
}

func TestNodeToParams(t *testing.T) {
	topo := Build(testCategories())
	params := nodeToParams(topo.Nodes[len(topo.Nodes)-1])
	if params["id"] != "device:atms/1" {
		t.Errorf("id = %v", params["id"])
	}
	if params["deviceID"] != "1" || params["category"] != "atms" {
		t.Errorf("params = %v", params)
	}
	if params["region"] != "zagreb" {
		t.Errorf("region = %v", params["region"])
	}
}

func TestEdgeToParams(t *testing.T) {
	params := edgeToParams(Edge{From: "category:a", To: "device:a/1", Type: EdgeContains})
	if params["from"] != "category:a" || params["to"] != "device:a/1" || params["type"] != "CONTAINS" {
		t.Errorf("params = %v", params)
	}
}

func TestSync_Empty(t *testing.T) {
	sess := &mockSession{}
	s := newTestSyncer(mockSessionFactory(sess))

	if err := s.Sync(context.Background(), Build(nil)); err != nil {
		t.Fatal(err)
	}
	// clear + 3 indexes
	if len(sess.calls) != 4 {
		t.Errorf("expected 4 Run calls, got %d", len(sess.calls))
	}
	if !sess.closed {
		t.Error("session not closed")
	}
}

func TestSync_SmallInventory(t *testing.T) {
	sess := &mockSession{}
	s := newTestSyncer(mockSessionFactory(sess))

	if err := s.Sync(context.Background(), Build(testCategories())); err != nil {
		t.Fatal(err)
	}
	// clear + 3 indexes + categories + devices + edges
	if len(sess.calls) != 7 {
		t.Fatalf("expected 7 Run calls, got %d", len(sess.calls))
	}
	cats, ok := sess.calls[4].params["categories"].([]map[string]any)
	if !ok || len(cats) != 2 {
		t.Errorf("category batch = %v", sess.calls[4].params)
	}
	devs, ok := sess.calls[5].params["devices"].([]map[string]any)
	if !ok || len(devs) != 3 {
		t.Errorf("device batch = %v", sess.calls[5].params)
	}
	if !strings.Contains(sess.calls[6].cypher, "CONTAINS") {
		t.Errorf("edge cypher = %q", sess.calls[6].cypher)
	}
}

func TestSync_LargeBatch(t *testing.T) {
	items := make([]models.Device, 0, 550)
	for i := range 550 {
		items = append(items, models.Device{ID: models.DeviceID(strconv.Itoa(i)), Name: "d" + strconv.Itoa(i)})
	}
	sess := &mockSession{}
	s := newTestSyncer(mockSessionFactory(sess))

	if err := s.Sync(context.Background(), Build([]models.AssetCategory{{Name: "fleet", Items: items}})); err != nil {
		t.Fatal(err)
	}
	// clear + 3 indexes + 1 category batch + 2 device batches + 2 edge batches
	if len(sess.calls) != 9 {
		t.Errorf("expected 9 Run calls, got %d", len(sess.calls))
	}
}

func TestSync_ClearError(t *testing.T) {
	s := newTestSyncer(failSessionFactory(fmt.Errorf("clear failed")))

	err := s.Sync(context.Background(), Build(testCategories()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "clearing memgraph") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestSync_IndexErrorIgnored(t *testing.T) {
	sess := &mockSession{
		runFunc: func(cypher string, _ map[string]any) (resultIterator, error) {
			if strings.HasPrefix(cypher, "CREATE INDEX") {
				return nil, fmt.Errorf("index exists")
			}
			return &mockResult{}, nil
		},
	}
	s := newTestSyncer(mockSessionFactory(sess))

	if err := s.Sync(context.Background(), Build(testCategories())); err != nil {
		t.Fatalf("index errors should be ignored: %v", err)
	}
}

func TestSync_DeviceBatchError(t *testing.T) {
	callCount := 0
	sess := &mockSession{
		runFunc: func(_ string, _ map[string]any) (resultIterator, error) {
			callCount++
			// clear + 3 indexes + categories succeed, devices fail
			if callCount > 5 {
				return nil, fmt.Errorf("device sync error")
			}
			return &mockResult{}, nil
		},
	}
	s := newTestSyncer(mockSessionFactory(sess))

	err := s.Sync(context.Background(), Build(testCategories()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "syncing devices batch") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestCounts(t *testing.T) {
	sess := &mockSession{
		runFunc: func(_ string, _ map[string]any) (resultIterator, error) {
			return &mockResult{records: []*neo4j.Record{
				makeRecord(map[string]any{"categories": int64(2), "devices": int64(3)}),
			}}, nil
		},
	}
	s := newTestSyncer(mockSessionFactory(sess))

	cats, devs, err := s.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cats != 2 || devs != 3 {
		t.Errorf("counts = %d, %d", cats, devs)
	}
}

func TestCounts_ResultError(t *testing.T) {
	sess := &mockSession{
		runFunc: func(_ string, _ map[string]any) (resultIterator, error) {
			return &mockResult{err: fmt.Errorf("stream broke")}, nil
		},
	}
	s := newTestSyncer(mockSessionFactory(sess))

	if _, _, err := s.Counts(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestSyncer_Close(t *testing.T) {
	d := &mockDriver{}
	s := &Syncer{driver: d}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !d.closed {
		t.Error("driver not closed")
	}
	if err := (&Syncer{}).Close(); err != nil {
		t.Errorf("nil driver close = %v", err)
	}
}
