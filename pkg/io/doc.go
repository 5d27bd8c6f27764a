// Package io reads and writes cell graphs as JSON.
//
// The format mirrors [dag.DAG]: graph metadata, nodes in insertion order and
// edges in insertion order.
//
//	{
//	  "meta": {"source": "TFRM-001.py"},
//	  "nodes": [
//	    {"id": "cell-1", "label": "helpers", "meta": {"kind": "helpers", ...}},
//	    {"id": "cell-2", "label": "Filter active", "row": 1, "meta": {...}}
//	  ],
//	  "edges": [
//	    {"from": "cell-1", "to": "cell-2", "meta": {"names": ["is_active"]}}
//	  ]
//	}
//
// Node meta written by notebook.Graph holds kind, index, outputs and display;
// edge meta holds the names the consumer reads from the producer. Rows are
// omitted when zero. [ReadJSON] rebuilds an equal graph, so a graph can be
// cached as JSON and served again without regenerating the notebook. JSON
// numbers in meta come back as float64.
package io
