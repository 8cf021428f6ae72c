package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/rwestudy-cli/internal/dataset"
)

func TestClusterRejectsBadK(t *testing.T) {
	e := newEngine(t, studyRecords())

	_, err := e.Cluster(ClusterOptions{K: 0})
	var eg *EmptyGroupError
	require.True(t, errors.As(err, &eg))

	_, err = e.Cluster(ClusterOptions{K: 11})
	require.True(t, errors.As(err, &eg))
	assert.Contains(t, err.Error(), "exceeds 10 distinct")

	dup := []dataset.Record{patient("1", "A", "X", -1, 0.5), patient("2", "A", "X", -3, 0.5), patient("3", "A", "X", -2, 0.9)}
	_, err = newEngine(t, dup).Cluster(ClusterOptions{K: 3})
	assert.True(t, errors.As(err, &eg), "two rows share identical features")

	_, err = e.LatestClusters()
	assert.ErrorIs(t, err, ErrNoClusters)
}

func TestClusterDeterministicAndVersioned(t *testing.T) {
	e := newEngine(t, studyRecords())
	first, err := e.Cluster(ClusterOptions{K: 3, Seed: 42})
	require.NoError(t, err)
	second, err := e.Cluster(ClusterOptions{K: 3, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Inertia, second.Inertia)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 2, e.Version())
	assert.Equal(t, e.ID(), second.ContextID)

	latest, err := e.LatestClusters()
	require.NoError(t, err)
	assert.Equal(t, second, latest)
	assert.NotSame(t, second, latest)

	assert.Equal(t, []string{"Cluster_0", "Cluster_1", "Cluster_2"}, first.Clusters.Keys())
	total := 0
	for _, c := range first.Clusters {
		total += c.Value.NPatients
		assert.GreaterOrEqual(t, c.Value.Outcomes.SuccessRate, 0.0)
		assert.LessOrEqual(t, c.Value.Outcomes.SuccessRate, 100.0)
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, ClusterFeatures, first.Features)
}

func TestClusterSeparatesObviousGroups(t *testing.T) {
	var recs []dataset.Record
	for i := 0; i < 4; i++ {
		young := patient("y"+string(rune('a'+i)), "A", "X", -1, 0.9)
		young.Age = 25 + float64(i)
		old := patient("o"+string(rune('a'+i)), "B", "X", -1, 0.5)
		old.Age = 70 + float64(i)
		recs = append(recs, young, old)
	}
	res, err := newEngine(t, recs).Cluster(ClusterOptions{K: 2, Seed: 1})
	require.NoError(t, err)

	byID := map[string]int{}
	for _, a := range res.Assignments {
		byID[a.PatientID] = a.Cluster
	}
	assert.Equal(t, byID["ya"], byID["yd"])
	assert.Equal(t, byID["oa"], byID["od"])
	assert.NotEqual(t, byID["ya"], byID["oa"])

	young, _ := res.Clusters.Get(ClusterName(byID["ya"]))
	assert.Equal(t, 4, young.NPatients)
	assert.Equal(t, 26.5, young.Characteristics.MeanAge)
	assert.Equal(t, 0.0, young.Outcomes.PreferredArmUsage)
	assert.Equal(t, 181.0, young.Characteristics.MeanTreatmentDuration)
}

func TestClusterFillsMissingFeaturesWithZero(t *testing.T) {
	r := patient("1", "A", "X", -1, math.NaN())
	noDates := patient("2", "A", "X", -1, 0.5)
	noDates.EndDate = time.Time{}
	tbl := dataset.Preprocess("t", []dataset.Record{r, noDates})
	pts := featureMatrix(tbl.Records)
	assert.Equal(t, 0.0, pts[0][2])
	assert.Equal(t, 181.0, pts[0][4])
	assert.Equal(t, 0.0, pts[1][4])
}

func TestJoinClusters(t *testing.T) {
	tbl := dataset.Preprocess("t", studyRecords())
	e, err := New(tbl, DefaultOptions())
	require.NoError(t, err)
	res, err := e.Cluster(ClusterOptions{K: 2, Seed: 42})
	require.NoError(t, err)

	joined, err := JoinClusters(tbl, res)
	require.NoError(t, err)
	require.Len(t, joined, tbl.Len())
	for i, j := range joined {
		assert.Equal(t, tbl.Records[i].PatientID, j.PatientID)
		assert.Equal(t, res.Assignments[i].Cluster, j.Cluster)
	}

	other := dataset.Preprocess("other", studyRecords()[:3])
	_, err = JoinClusters(other, res)
	assert.Error(t, err)
	_, err = JoinClusters(tbl, nil)
	assert.ErrorIs(t, err, ErrNoClusters)
}

func TestClusterResultIsolatedFromEngine(t *testing.T) {
	tbl := dataset.Preprocess("t", studyRecords())
	e, err := New(tbl, DefaultOptions())
	require.NoError(t, err)
	res, err := e.Cluster(ClusterOptions{K: 2, Seed: 42})
	require.NoError(t, err)

	res.Assignments = nil
	res.Clusters[0].Value.NPatients = -1

	latest, err := e.LatestClusters()
	require.NoError(t, err)
	require.Len(t, latest.Assignments, tbl.Len())
	assert.GreaterOrEqual(t, latest.Clusters[0].Value.NPatients, 0)
	_, err = JoinClusters(tbl, latest)
	require.NoError(t, err)

	latest.Assignments[0].Cluster = 99
	again, err := e.LatestClusters()
	require.NoError(t, err)
	assert.NotEqual(t, 99, again.Assignments[0].Cluster)
}
