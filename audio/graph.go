package audio

import (
	"fmt"
	"sync"
)

// NodeID 图中节点的稳定索引
type NodeID int

type node struct {
	settings Settings
	proc     Processor
	inputs   []NodeID
	scratch  []float32
	live     bool
}

// Graph 基于拉取的处理图。节点保存在 arena 中，通过 NodeID 引用，
// 同一个节点可以被多个父节点引用。
//
// 图本身不做环检测，调用方需要保证无环。求值是单线程同步的，
// 但所有结构修改和求值都在同一把锁下进行。
type Graph struct {
	mu       sync.Mutex
	settings Settings
	nodes    []node
	free     []NodeID
}

// NewGraph 创建空图
func NewGraph(settings Settings) (*Graph, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Graph{settings: settings}, nil
}

func (g *Graph) Settings() Settings { return g.settings }

// AddNode 添加一个没有输入的节点。proc 为 nil 表示直通节点
func (g *Graph) AddNode(settings Settings, proc Processor) (NodeID, error) {
	if err := settings.Validate(); err != nil {
		return 0, err
	}
	if !g.settings.Compatible(settings) {
		return 0, fmt.Errorf("%w: node settings %s incompatible with graph %s",
			ErrInvalidConfiguration, settings, g.settings)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		nd := &g.nodes[id]
		nd.settings = settings
		nd.proc = proc
		nd.inputs = nd.inputs[:0]
		nd.live = true
		return id, nil
	}

	g.nodes = append(g.nodes, node{
		settings: settings,
		proc:     proc,
		scratch:  make([]float32, settings.BufferLen()),
		live:     true,
	})
	return NodeID(len(g.nodes) - 1), nil
}

// AddInput 把 child 追加到 parent 的输入列表末尾，插入顺序即混音顺序
func (g *Graph) AddInput(parent, child NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(parent); err != nil {
		return err
	}
	if err := g.check(child); err != nil {
		return err
	}
	p := &g.nodes[parent]
	p.inputs = append(p.inputs, child)
	return nil
}

// Inputs 返回 parent 的输入列表副本
func (g *Graph) Inputs(id NodeID) ([]NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(id); err != nil {
		return nil, err
	}
	return append([]NodeID(nil), g.nodes[id].inputs...), nil
}

// Remove 从所有父节点断开 id 并回收它的槽位
func (g *Graph) Remove(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(id); err != nil {
		return err
	}
	for i := range g.nodes {
		nd := &g.nodes[i]
		if !nd.live || len(nd.inputs) == 0 {
			continue
		}
		kept := nd.inputs[:0]
		for _, in := range nd.inputs {
			if in != id {
				kept = append(kept, in)
			}
		}
		nd.inputs = kept
	}
	nd := &g.nodes[id]
	nd.live = false
	nd.proc = nil
	nd.inputs = nd.inputs[:0]
	g.free = append(g.free, id)
	return nil
}

// Len 存活节点数量
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes) - len(g.free)
}

// AudioRequested 让节点 id 填充 buf。
// 没有输入的节点直接在 buf 上运行自己的处理器；有输入的节点先清零 buf，
// 按顺序把每个输入的输出叠加进来，再对混音结果运行处理器。
func (g *Graph) AudioRequested(id NodeID, buf []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(id); err != nil {
		return err
	}
	return g.pull(id, buf)
}

func (g *Graph) pull(id NodeID, buf []float32) error {
	nd := &g.nodes[id]
	if err := nd.settings.CheckBuffer(len(buf)); err != nil {
		return fmt.Errorf("node %d: %w", id, err)
	}

	if len(nd.inputs) > 0 {
		clear(buf)
		scratch := nd.scratch
		for _, in := range nd.inputs {
			clear(scratch)
			if err := g.pull(in, scratch); err != nil {
				return err
			}
			for i, v := range scratch {
				buf[i] += v
			}
		}
	}

	if nd.proc != nil {
		nd.proc.Process(buf, nd.settings)
	}
	return nil
}

func (g *Graph) check(id NodeID) error {
	if id < 0 || int(id) >= len(g.nodes) || !g.nodes[id].live {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return nil
}
