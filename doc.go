// Package aegis provides a governance layer for autonomous agent actions.
//
// Every sensitive call an agent makes is routed through a policy decision:
// allow it, block it, or park it until a human approves. A per-agent
// kill-switch pauses an agent outright, overriding any rule. All outcomes
// land in an append-only audit log.
//
// The engine is designed to be embedded in host applications. End-users
// typically interact via the high-level Service façade exposed by the root
// package:
//
//	svc := aegis.New()
//	agent, _ := svc.Register(ctx, aegis.AgentSpec{
//		Name:  "support",
//		Allow: []string{"lookup_order"},
//		Block: []string{"delete_order"},
//	})
//	out, err := agent.Exec(ctx, "lookup_order", args, func(ctx context.Context) (any, error) {
//		return orders.Lookup(ctx, args)
//	})
//
// For more details see the README and individual sub-packages.
package aegis
