// Package throttle translates budget pressure into delay and quality
// decisions with exponential backoff.
//
// # Overview
//
// The Service consumes admission decisions from the budget engine and a
// per-operation Config to produce a ThrottleLevel (none, light, moderate,
// heavy, blocked), a concrete delay, and a quality factor in (0, 1].
// Consecutive throttles per operation are the backoff memory: repeated
// pressure escalates the delay geometrically and degrades quality
// monotonically, bounded by the config's max delay and minimum quality.
//
// # Usage
//
//	service := throttle.NewService(manager, throttle.ServiceConfig{})
//
//	decision := service.Apply(ctx, throttle.Request{
//	    Operation: "llm_call",
//	    CostUSD:   0.02,
//	})
//	if !decision.Budget.Allowed {
//	    return errBlocked
//	}
//	if err := throttle.Wait(ctx, decision.Delay); err != nil {
//	    return err
//	}
//
// Decide is a pure query; Apply is Decide plus the backoff state charge.
// The service never sleeps internally - the delay suspension point belongs
// to the caller, via Wait.
package throttle
