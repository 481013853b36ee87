package handlers

import (
	"context"
	"fmt"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/deploy"
	"github.com/searchstack/osdeploy/internal/ui"
	"github.com/searchstack/osdeploy/internal/util/labels"
	"github.com/searchstack/osdeploy/internal/util/prerequisites"
)

// Status handles the status command: one line per planned resource with its
// presence, plus pod readiness for the two workload selectors and the state
// of the required client tools.
func Status(ctx context.Context, opts *config.Options) error {
	client, err := newKubeClient(opts)
	if err != nil {
		return err
	}

	fmt.Println(ui.Title(fmt.Sprintf("OpenSearch status in namespace %s", opts.Env.Namespace)))

	fmt.Println(ui.Section("Resources"))
	plan := deploy.BuildPlan(opts)
	for _, step := range plan.Steps {
		for _, ref := range step.Resources {
			exists, err := client.Exists(ctx, ref.Kind, ref.Name)
			switch {
			case err != nil:
				fmt.Printf("  %s %s/%s (%v)\n", ui.Failed(ui.CrossMark), ref.Kind, ref.Name, err)
			case exists:
				fmt.Printf("  %s %s/%s\n", ui.Ready(ui.CheckMark), ref.Kind, ref.Name)
			default:
				fmt.Printf("  %s %s/%s\n", ui.Dim("[--]"), ref.Kind, ref.Name)
			}
		}
	}

	fmt.Println(ui.Section("Pods"))
	for _, selector := range []string{labels.Search(), labels.Dashboards()} {
		pods, err := client.Pods(ctx, selector)
		if err != nil {
			fmt.Printf("  %s %s: %v\n", ui.Failed(ui.CrossMark), selector, err)
			continue
		}
		if len(pods) == 0 {
			fmt.Printf("  %s %s: no pods\n", ui.Dim("[--]"), selector)
			continue
		}
		for _, pod := range pods {
			fmt.Printf("  %s %s (%s)\n", ui.Dim("·"), pod.Name, pod.Status.Phase)
		}
	}

	fmt.Println(ui.Section("Client tools"))
	for _, result := range prerequisites.CheckAll().Results {
		if result.Found {
			fmt.Printf("  %s %s %s\n", ui.Ready(ui.CheckMark), result.Tool.Name, ui.Dim(result.Version))
		} else {
			fmt.Printf("  %s %s missing (%s)\n", ui.Warning(ui.WarnMark), result.Tool.Name, result.Tool.InstallURL)
		}
	}
	return nil
}
