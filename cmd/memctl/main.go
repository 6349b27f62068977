// Command memctl exercises the memkit allocators and containers and prints
// their statistics.
package main

func main() {
	execute()
}
