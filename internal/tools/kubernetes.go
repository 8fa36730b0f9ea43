package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	notificationNamespace = "kcp-system"
	notificationResource  = "customernotifications.v1alpha1.operator.kyma-project.io"
	notificationPodMarker = "customer-notification"
)

var namespaceParam = Param{
	Type:        "string",
	Description: "The Kubernetes namespace to query",
	Default:     defaultNamespace,
}

var notificationNamespaceParam = Param{
	Type:        "string",
	Description: "The Kubernetes namespace to query",
	Default:     notificationNamespace,
}

var listPodsSpec = Spec{
	Name:        string(ListPods),
	Description: "List all pods in a namespace with status, IPs, containers and labels.",
	Parameters:  map[string]Param{"namespace": namespaceParam},
}

var getPodDetailsSpec = Spec{
	Name:        string(GetPodDetails),
	Description: "Get detailed information about a pod: conditions, containers, ports, labels and annotations.",
	Parameters: map[string]Param{
		"pod_name":  {Type: "string", Description: "Name of the pod", Required: true},
		"namespace": namespaceParam,
	},
}

var getPodLogsSpec = Spec{
	Name:        string(GetPodLogs),
	Description: "Get logs from a pod.",
	Parameters: map[string]Param{
		"pod_name":   {Type: "string", Description: "Name of the pod", Required: true},
		"namespace":  namespaceParam,
		"container":  {Type: "string", Description: "Container name, required for multi-container pods"},
		"tail_lines": {Type: "integer", Description: "Number of lines to return from the end of the logs"},
	},
}

var listNamespacesSpec = Spec{
	Name:        string(ListNamespaces),
	Description: "List all namespaces in the cluster with status, labels and creation time.",
}

var listCustomerNotificationPodsSpec = Spec{
	Name:        string(ListCustomerNotificationPods),
	Description: "List the customer notification operator pods (pods whose name contains 'customer-notification').",
	Parameters:  map[string]Param{"namespace": notificationNamespaceParam},
}

var listCustomerNotificationsSpec = Spec{
	Name:        string(ListCustomerNotifications),
	Description: "List customer notification custom resources with their state, type and schedule.",
	Parameters:  map[string]Param{"namespace": notificationNamespaceParam},
}

var getCustomerNotificationDetailsSpec = Spec{
	Name:        string(GetCustomerNotificationDetails),
	Description: "Get one customer notification custom resource including its full spec and status.",
	Parameters: map[string]Param{
		"name":      {Type: "string", Description: "Name of the customer notification resource", Required: true},
		"namespace": notificationNamespaceParam,
	},
}

// Subset of the pod and namespace objects returned by "kubectl get -o json".

type objectMeta struct {
	Name              string            `json:"name"`
	Namespace         string            `json:"namespace"`
	Labels            map[string]string `json:"labels"`
	Annotations       map[string]string `json:"annotations"`
	CreationTimestamp string            `json:"creationTimestamp"`
}

type containerPort struct {
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol"`
}

type podObject struct {
	Metadata objectMeta `json:"metadata"`
	Spec     struct {
		Containers []struct {
			Name  string          `json:"name"`
			Image string          `json:"image"`
			Ports []containerPort `json:"ports"`
		} `json:"containers"`
	} `json:"spec"`
	Status struct {
		Phase      string `json:"phase"`
		PodIP      string `json:"podIP"`
		HostIP     string `json:"hostIP"`
		StartTime  string `json:"startTime"`
		Conditions []struct {
			Type    string `json:"type"`
			Status  string `json:"status"`
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"conditions"`
		ContainerStatuses []struct {
			Name         string `json:"name"`
			Ready        bool   `json:"ready"`
			RestartCount int    `json:"restartCount"`
		} `json:"containerStatuses"`
	} `json:"status"`
}

type namespaceObject struct {
	Metadata objectMeta `json:"metadata"`
	Status   struct {
		Phase string `json:"phase"`
	} `json:"status"`
}

type objectList[T any] struct {
	Items []T `json:"items"`
}

// Summaries returned to the model.

type containerSummary struct {
	Name         string `json:"name"`
	Image        string `json:"image"`
	Ready        bool   `json:"ready"`
	RestartCount int    `json:"restart_count"`
}

type podSummary struct {
	Name       string             `json:"name"`
	Namespace  string             `json:"namespace"`
	Status     string             `json:"status"`
	PodIP      string             `json:"pod_ip"`
	HostIP     string             `json:"host_ip"`
	StartTime  *string            `json:"start_time"`
	Containers []containerSummary `json:"containers"`
	Labels     map[string]string  `json:"labels"`
}

type conditionSummary struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type portSummary struct {
	ContainerPort int    `json:"container_port"`
	Protocol      string `json:"protocol"`
}

type containerDetail struct {
	Name  string        `json:"name"`
	Image string        `json:"image"`
	Ports []portSummary `json:"ports"`
}

type podDetail struct {
	Name        string             `json:"name"`
	Namespace   string             `json:"namespace"`
	Status      string             `json:"status"`
	Conditions  []conditionSummary `json:"conditions"`
	Containers  []containerDetail  `json:"containers"`
	Labels      map[string]string  `json:"labels"`
	Annotations map[string]string  `json:"annotations"`
}

type namespaceSummary struct {
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	Labels            map[string]string `json:"labels"`
	CreationTimestamp string            `json:"creation_timestamp"`
}

type notificationSummary struct {
	Name              string         `json:"name"`
	Namespace         string         `json:"namespace"`
	Status            string         `json:"status"`
	Type              string         `json:"type"`
	Schedule          string         `json:"schedule"`
	CreationTimestamp string         `json:"creation_timestamp"`
	Labels            map[string]any `json:"labels"`
	Annotations       map[string]any `json:"annotations"`
	Spec              map[string]any `json:"spec,omitempty"`
	StatusDetails     map[string]any `json:"status_details,omitempty"`
}

func summarizePod(p podObject) podSummary {
	out := podSummary{
		Name:       p.Metadata.Name,
		Namespace:  p.Metadata.Namespace,
		Status:     p.Status.Phase,
		PodIP:      p.Status.PodIP,
		HostIP:     p.Status.HostIP,
		Containers: []containerSummary{},
		Labels:     nonNilLabels(p.Metadata.Labels),
	}
	if p.Status.StartTime != "" {
		st := p.Status.StartTime
		out.StartTime = &st
	}
	for _, c := range p.Spec.Containers {
		cs := containerSummary{Name: c.Name, Image: c.Image}
		for _, st := range p.Status.ContainerStatuses {
			if st.Name == c.Name {
				cs.Ready = st.Ready
				cs.RestartCount = st.RestartCount
				break
			}
		}
		out.Containers = append(out.Containers, cs)
	}
	return out
}

func detailPod(p podObject) podDetail {
	out := podDetail{
		Name:        p.Metadata.Name,
		Namespace:   p.Metadata.Namespace,
		Status:      p.Status.Phase,
		Conditions:  []conditionSummary{},
		Containers:  []containerDetail{},
		Labels:      nonNilLabels(p.Metadata.Labels),
		Annotations: nonNilLabels(p.Metadata.Annotations),
	}
	for _, c := range p.Status.Conditions {
		out.Conditions = append(out.Conditions, conditionSummary(c))
	}
	for _, c := range p.Spec.Containers {
		cd := containerDetail{Name: c.Name, Image: c.Image, Ports: []portSummary{}}
		for _, port := range c.Ports {
			cd.Ports = append(cd.Ports, portSummary(port))
		}
		out.Containers = append(out.Containers, cd)
	}
	return out
}

func summarizeNotification(obj map[string]any, withDetails bool) notificationSummary {
	metadata := mapField(obj, "metadata")
	status := mapField(obj, "status")
	spec := mapField(obj, "spec")

	out := notificationSummary{
		Name:              stringField(metadata, "name", ""),
		Namespace:         stringField(metadata, "namespace", ""),
		Status:            stringField(status, "mainstate", "Unknown"),
		Type:              stringField(mapField(spec, "notificationparameters"), "type", "Unknown"),
		Schedule:          stringField(mapField(spec, "parameters"), "schedule", ""),
		CreationTimestamp: stringField(metadata, "creationTimestamp", ""),
		Labels:            mapField(metadata, "labels"),
		Annotations:       mapField(metadata, "annotations"),
	}
	if withDetails {
		out.Spec = spec
		out.StatusDetails = status
	}
	return out
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func stringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return fallback
}

func nonNilLabels(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func toJSON(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// getJSON runs "kubectl <args> -o json" and decodes the result into v.
func (k *kubectl) getJSON(ctx context.Context, v any, args ...string) error {
	out, err := k.output(ctx, append(args, "-o", "json")...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("decode kubectl output: %w", err)
	}
	return nil
}

type namespaceArgs struct {
	Namespace string `json:"namespace"`
}

func (a *namespaceArgs) validate() error {
	if a.Namespace == "" {
		a.Namespace = defaultNamespace
	}
	return nil
}

type notificationNamespaceArgs struct {
	Namespace string `json:"namespace"`
}

func (a *notificationNamespaceArgs) validate() error {
	if a.Namespace == "" {
		a.Namespace = notificationNamespace
	}
	return nil
}

func (k *kubectl) pods(ctx context.Context, namespace string) ([]podObject, error) {
	var list objectList[podObject]
	if err := k.getJSON(ctx, &list, "get", "pods", "-n", namespace); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (k *kubectl) listPods(ctx context.Context, args namespaceArgs) (string, error) {
	items, err := k.pods(ctx, args.Namespace)
	if err != nil {
		return fmt.Sprintf("Error listing pods in namespace '%s': %v", args.Namespace, err), nil
	}
	out := make([]podSummary, 0, len(items))
	for _, p := range items {
		out = append(out, summarizePod(p))
	}
	return toJSON(out)
}

type podArgs struct {
	PodName   string `json:"pod_name"`
	Namespace string `json:"namespace"`
}

func (a *podArgs) validate() error {
	if strings.TrimSpace(a.PodName) == "" {
		return errors.New("pod_name is required")
	}
	if a.Namespace == "" {
		a.Namespace = defaultNamespace
	}
	return nil
}

func (k *kubectl) podDetails(ctx context.Context, args podArgs) (string, error) {
	var p podObject
	if err := k.getJSON(ctx, &p, "get", "pod", args.PodName, "-n", args.Namespace); err != nil {
		return fmt.Sprintf("Error getting pod '%s' in namespace '%s': %v", args.PodName, args.Namespace, err), nil
	}
	return toJSON(detailPod(p))
}

type podLogsArgs struct {
	PodName   string `json:"pod_name"`
	Namespace string `json:"namespace"`
	Container string `json:"container"`
	TailLines *int   `json:"tail_lines"`
}

func (a *podLogsArgs) validate() error {
	if strings.TrimSpace(a.PodName) == "" {
		return errors.New("pod_name is required")
	}
	if a.Namespace == "" {
		a.Namespace = defaultNamespace
	}
	if a.TailLines != nil && *a.TailLines < 0 {
		return errors.New("tail_lines must not be negative")
	}
	return nil
}

func (k *kubectl) podLogs(ctx context.Context, args podLogsArgs) (string, error) {
	argv := []string{"logs", args.PodName, "-n", args.Namespace}
	if args.Container != "" {
		argv = append(argv, "-c", args.Container)
	}
	if args.TailLines != nil {
		argv = append(argv, "--tail="+strconv.Itoa(*args.TailLines))
	}
	out, err := k.output(ctx, argv...)
	if err != nil {
		return fmt.Sprintf("Error getting logs for pod '%s': %v", args.PodName, err), nil
	}
	return string(out), nil
}

type noArgs struct{}

func (k *kubectl) listNamespaces(ctx context.Context, _ noArgs) (string, error) {
	var list objectList[namespaceObject]
	if err := k.getJSON(ctx, &list, "get", "namespaces"); err != nil {
		return fmt.Sprintf("Error listing namespaces: %v", err), nil
	}
	out := make([]namespaceSummary, 0, len(list.Items))
	for _, ns := range list.Items {
		out = append(out, namespaceSummary{
			Name:              ns.Metadata.Name,
			Status:            ns.Status.Phase,
			Labels:            nonNilLabels(ns.Metadata.Labels),
			CreationTimestamp: ns.Metadata.CreationTimestamp,
		})
	}
	return toJSON(out)
}

func (k *kubectl) listNotificationPods(ctx context.Context, args notificationNamespaceArgs) (string, error) {
	items, err := k.pods(ctx, args.Namespace)
	if err != nil {
		return fmt.Sprintf("Error listing customer notification pods in namespace '%s': %v", args.Namespace, err), nil
	}
	out := []podSummary{}
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Metadata.Name), notificationPodMarker) {
			out = append(out, summarizePod(p))
		}
	}
	return toJSON(out)
}

func (k *kubectl) listNotifications(ctx context.Context, args notificationNamespaceArgs) (string, error) {
	var list objectList[map[string]any]
	if err := k.getJSON(ctx, &list, "get", notificationResource, "-n", args.Namespace); err != nil {
		return fmt.Sprintf("Error listing customer notifications in namespace '%s': %v", args.Namespace, err), nil
	}
	out := make([]notificationSummary, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, summarizeNotification(item, false))
	}
	return toJSON(out)
}

type notificationArgs struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

func (a *notificationArgs) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("name is required")
	}
	if a.Namespace == "" {
		a.Namespace = notificationNamespace
	}
	return nil
}

func (k *kubectl) notificationDetails(ctx context.Context, args notificationArgs) (string, error) {
	var obj map[string]any
	if err := k.getJSON(ctx, &obj, "get", notificationResource, args.Name, "-n", args.Namespace); err != nil {
		return fmt.Sprintf("Error getting customer notification '%s' in namespace '%s': %v", args.Name, args.Namespace, err), nil
	}
	return toJSON(summarizeNotification(obj, true))
}
