package vecmatch_test

import (
	"context"
	"fmt"

	"github.com/vecmatch/vecmatch"
	"github.com/vecmatch/vecmatch/metadata"
)

func Example() {
	ctx := context.Background()

	c, err := vecmatch.Flat(2).Euclidean().Build()
	if err != nil {
		panic(err)
	}

	err = c.BulkLoad(ctx, []vecmatch.Record{
		{ID: "a", Vector: []float32{0, 0}, Metadata: metadata.Document{"category": metadata.String("tech")}},
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "c", Vector: []float32{0, 1}},
	})
	if err != nil {
		panic(err)
	}

	results, err := c.Search([]float32{0.1, 0.1}).KNN(3).Execute(ctx)
	if err != nil {
		panic(err)
	}

	for _, r := range results {
		fmt.Println(r.ID)
	}
	// Output:
	// a
	// c
	// b
}
