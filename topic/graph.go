package topic

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
)

// Visualizer renders the partition/replica graph of a topic in Graphviz DOT.
type Visualizer interface {
	Visualize(t Topic) (string, error)
}

type graphViz struct{}

func NewVisualizer() Visualizer {
	return graphViz{}
}

func (graphViz) Visualize(t Topic) (string, error) {
	root := `topic`
	g := gographviz.NewGraph()
	if err := g.SetName(root); err != nil {
		return ``, err
	}
	if err := g.SetDir(true); err != nil {
		return ``, err
	}
	if err := g.AddAttr(root, `rankdir`, `LR`); err != nil {
		return ``, err
	}

	topicNode := fmt.Sprintf(`"%s"`, t.Name)
	if err := g.AddNode(root, topicNode, map[string]string{
		`shape`:     `box`,
		`style`:     `filled`,
		`fillcolor`: `lightblue`,
		`label`:     topicNode,
	}); err != nil {
		return ``, err
	}

	brokers := map[int32]bool{}
	for _, p := range t.Partitions {
		ptNode := fmt.Sprintf(`"%s_%d"`, t.Name, p.Partition)
		if err := g.AddNode(root, ptNode, map[string]string{
			`label`: fmt.Sprintf(`"partition %d"`, p.Partition),
		}); err != nil {
			return ``, err
		}

		if err := g.AddEdge(topicNode, ptNode, true, nil); err != nil {
			return ``, err
		}

		for _, r := range p.Replicas {
			brokerNode := fmt.Sprintf(`"broker_%d"`, r.Broker)
			if !brokers[r.Broker] {
				if err := g.AddNode(root, brokerNode, map[string]string{
					`shape`: `ellipse`,
					`label`: fmt.Sprintf(`"broker %d"`, r.Broker),
				}); err != nil {
					return ``, err
				}
				brokers[r.Broker] = true
			}

			attrs := map[string]string{`style`: `dashed`}
			if r.Leader {
				attrs = map[string]string{`style`: `bold`, `label`: `leader`}
			}

			if err := g.AddEdge(ptNode, brokerNode, true, attrs); err != nil {
				return ``, err
			}
		}
	}

	return g.String(), nil
}
