// Package api provides the typed client for the restroom map REST backend.
//
// Every operation goes through a shared HTTP transport (connection pool,
// optional rate limiter and circuit breaker, request IDs, tracing). Reads
// are collapsed by a request deduplication cache and retried with the read
// profile; mutations are never deduplicated and use the more conservative
// mutation profile.
//
// Operations never return transport errors to the caller. A failed call
// yields an empty result (empty slice, nil, or false), is logged, and is
// passed to the ErrorHandler if one is configured:
//
//	client, err := api.New(cfg,
//	    api.WithLogger(logger),
//	    api.WithErrorHandler(func(op string, err error) {
//	        lastErr = err
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bathrooms := client.GetBathrooms(ctx, 42.36, -71.06, api.FilterOptions{Radius: 5})
package api
