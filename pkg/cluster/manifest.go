package cluster

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gantryci/gantry/pkg/types"
)

// RenderManifest produces the Deployment and NodePort Service documents
// applied to the ephemeral cluster
func RenderManifest(w types.WorkloadSpec) ([]byte, error) {
	labels := map[string]string{"app": w.Name}

	deployment := map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]interface{}{
			"name":   w.Name,
			"labels": labels,
		},
		"spec": map[string]interface{}{
			"replicas": w.Replicas,
			"selector": map[string]interface{}{"matchLabels": labels},
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{"labels": labels},
				"spec": map[string]interface{}{
					"containers": []interface{}{
						map[string]interface{}{
							"name":            w.Name,
							"image":           w.Image,
							"imagePullPolicy": "Never",
							"ports": []interface{}{
								map[string]interface{}{"containerPort": w.Port},
							},
						},
					},
				},
			},
		},
	}

	service := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata": map[string]interface{}{
			"name":   w.Name,
			"labels": labels,
		},
		"spec": map[string]interface{}{
			"type":     "NodePort",
			"selector": labels,
			"ports": []interface{}{
				map[string]interface{}{
					"port":       w.Port,
					"targetPort": w.Port,
					"nodePort":   w.NodePort,
				},
			},
		},
	}

	var out strings.Builder
	for i, doc := range []map[string]interface{}{deployment, service} {
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to render manifest: %w", err)
		}
		if i > 0 {
			out.WriteString("---\n")
		}
		out.Write(data)
	}
	return []byte(out.String()), nil
}
