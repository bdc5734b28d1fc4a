// Command kmem builds the address space of a process and lets users inspect
// the resulting page tables.
package main

func main() {
	Execute()
}
